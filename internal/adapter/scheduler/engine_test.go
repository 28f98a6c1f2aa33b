package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arcmirror/arcproxy/internal/adapter/cachefile"
	"github.com/arcmirror/arcproxy/internal/adapter/channelpool"
	"github.com/arcmirror/arcproxy/internal/adapter/registry"
	"github.com/arcmirror/arcproxy/internal/adapter/transport"
	"github.com/arcmirror/arcproxy/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, providers []domain.Provider) *Engine {
	t.Helper()

	reg := registry.New(providers)
	files := cachefile.NewRegistry(t.TempDir())
	factory := transport.NewHTTPHandleFactory()
	pool, err := channelpool.NewPool(factory, files, 16)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return New(reg, pool, files, discardLogger(), 0, 0)
}

func drainToCompletion(t *testing.T, handle interface {
	Events(ctx context.Context) <-chan domain.ProgressEvent
}) domain.ProgressEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var last domain.ProgressEvent
	for ev := range handle.Events(ctx) {
		last = ev
		if ev.Kind == domain.EventCompleted || ev.Kind == domain.EventFailed {
			return last
		}
	}
	t.Fatal("event channel closed before a terminal event arrived")
	return last
}

func TestEngine_ScheduleServesFromBestProvider(t *testing.T) {
	const body = "the-whole-object"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	provider := domain.Provider{Name: "only-mirror", BaseURI: server.URL + "/"}
	engine := newTestEngine(t, []domain.Provider{provider})

	order, _ := domain.NewOrder("repo/file.bin")
	handle, err := engine.Schedule(context.Background(), order)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	defer handle.Release()

	ev := drainToCompletion(t, handle)
	if ev.Kind != domain.EventCompleted {
		t.Fatalf("expected EventCompleted, got %v (err=%v)", ev.Kind, ev.Err)
	}
	if ev.SizeWritten != int64(len(body)) {
		t.Errorf("expected SizeWritten %d, got %d", len(body), ev.SizeWritten)
	}

	stats := engine.Stats()
	if stats.OrdersServed != 1 {
		t.Errorf("expected OrdersServed 1, got %d", stats.OrdersServed)
	}
}

func TestEngine_FallsBackToNextProviderOnFailure(t *testing.T) {
	const body = "fallback-object"
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	defer good.Close()

	providers := []domain.Provider{
		{Name: "bad-mirror", BaseURI: bad.URL + "/", Score: domain.NewScore(0, 1)},
		{Name: "good-mirror", BaseURI: good.URL + "/", Score: domain.NewScore(0, 2)},
	}
	engine := newTestEngine(t, providers)

	order, _ := domain.NewOrder("repo/needs-fallback.bin")
	handle, err := engine.Schedule(context.Background(), order)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	defer handle.Release()

	ev := drainToCompletion(t, handle)
	if ev.Kind != domain.EventCompleted {
		t.Fatalf("expected EventCompleted after falling back, got %v (err=%v)", ev.Kind, ev.Err)
	}
	if ev.SizeWritten != int64(len(body)) {
		t.Errorf("expected SizeWritten %d, got %d", len(body), ev.SizeWritten)
	}
}

func TestEngine_ProvidersExhausted(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	provider := domain.Provider{Name: "only-bad-mirror", BaseURI: bad.URL + "/"}
	engine := newTestEngine(t, []domain.Provider{provider})

	order, _ := domain.NewOrder("repo/missing.bin")
	handle, err := engine.Schedule(context.Background(), order)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	defer handle.Release()

	ev := drainToCompletion(t, handle)
	if ev.Kind != domain.EventFailed {
		t.Fatalf("expected EventFailed, got %v", ev.Kind)
	}

	var exhausted *domain.ProvidersExhaustedError
	if e, ok := ev.Err.(*domain.ProvidersExhaustedError); ok {
		exhausted = e
	}
	if exhausted == nil {
		t.Fatalf("expected ProvidersExhaustedError, got %T: %v", ev.Err, ev.Err)
	}
}

func TestEngine_ConcurrentScheduleFoldsIntoOneFetch(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("shared-object-body"))
	}))
	defer server.Close()

	provider := domain.Provider{Name: "shared-mirror", BaseURI: server.URL + "/"}
	engine := newTestEngine(t, []domain.Provider{provider})

	order, _ := domain.NewOrder("repo/shared.bin")

	const callers = 8
	var wg sync.WaitGroup
	results := make([]domain.ProgressEvent, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handle, err := engine.Schedule(context.Background(), order)
			if err != nil {
				t.Errorf("Schedule #%d: %v", i, err)
				return
			}
			defer handle.Release()
			results[i] = drainToCompletion(t, handle)
		}(i)
	}
	wg.Wait()

	for i, ev := range results {
		if ev.Kind != domain.EventCompleted {
			t.Errorf("caller %d: expected EventCompleted, got %v", i, ev.Kind)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected exactly 1 upstream fetch across %d concurrent callers, got %d", callers, got)
	}
}

func TestEngine_EarlyReleaseDoesNotStarveOtherWaiters(t *testing.T) {
	unblock := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-unblock
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("slow-shared-object"))
	}))
	defer server.Close()

	provider := domain.Provider{Name: "slow-mirror", BaseURI: server.URL + "/"}
	engine := newTestEngine(t, []domain.Provider{provider})
	order, _ := domain.NewOrder("repo/slow-shared.bin")

	primary, err := engine.Schedule(context.Background(), order)
	if err != nil {
		t.Fatalf("primary Schedule: %v", err)
	}
	primaryEvents := primary.Events(context.Background())

	// Give the run loop a moment to start its job before a second caller
	// folds into the same order.
	time.Sleep(20 * time.Millisecond)

	secondary, err := engine.Schedule(context.Background(), order)
	if err != nil {
		t.Fatalf("secondary Schedule: %v", err)
	}
	// The second caller gives up (e.g. a disconnected client) before the
	// job produces a terminal event. Its Release must not tear down the
	// shared entry out from under the still-waiting primary caller: each
	// Schedule call owns exactly one waiter slot regardless of whether it
	// folded into an already-running attempt.
	secondary.Release()

	close(unblock)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-primaryEvents:
			if !ok {
				t.Fatal("primary event channel closed before a terminal event arrived")
			}
			if ev.Kind == domain.EventCompleted || ev.Kind == domain.EventFailed {
				primary.Release()
				if ev.Kind != domain.EventCompleted {
					t.Fatalf("expected EventCompleted, got %v (err=%v)", ev.Kind, ev.Err)
				}
				return
			}
		case <-timeout:
			t.Fatal("primary caller never observed a terminal event; shared entry was likely torn down early")
		}
	}
}

func TestEngine_CacheHitServesWithoutUpstreamContact(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("already-cached-body"))
	}))
	defer server.Close()

	provider := domain.Provider{Name: "mirror", BaseURI: server.URL + "/"}
	engine := newTestEngine(t, []domain.Provider{provider})
	order, _ := domain.NewOrder("repo/cached.bin")

	first, err := engine.Schedule(context.Background(), order)
	if err != nil {
		t.Fatalf("first Schedule: %v", err)
	}
	drainToCompletion(t, first)
	first.Release()

	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 upstream hit after first schedule, got %d", got)
	}

	second, err := engine.Schedule(context.Background(), order)
	if err != nil {
		t.Fatalf("second Schedule: %v", err)
	}
	defer second.Release()

	ev := drainToCompletion(t, second)
	if ev.Kind != domain.EventCompleted {
		t.Fatalf("expected immediate EventCompleted on cache hit, got %v", ev.Kind)
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("expected upstream hit count to stay at 1 on a cache hit, got %d", got)
	}

	stats := engine.Stats()
	if stats.CacheHits != 1 {
		t.Errorf("expected CacheHits 1, got %d", stats.CacheHits)
	}
}

func TestEngine_BadOrderPathRejected(t *testing.T) {
	_, err := domain.NewOrder("../../etc/passwd")
	if err == nil {
		t.Fatal("expected NewOrder to reject a path-traversal attempt")
	}
	var badOrder *domain.BadOrderError
	if e, ok := err.(*domain.BadOrderError); ok {
		badOrder = e
	}
	if badOrder == nil {
		t.Fatalf("expected BadOrderError, got %T", err)
	}
	_ = fmt.Sprintf("%v", badOrder)
}
