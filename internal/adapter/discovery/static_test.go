package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arcmirror/arcproxy/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStaticSource_ProvidersReturnsACopy(t *testing.T) {
	providers := []domain.Provider{{Name: "mirror-a", BaseURI: "https://a.example/"}}
	source := NewStaticSource(providers)

	got, err := source.Providers()
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	got[0].Name = "mutated"

	again, err := source.Providers()
	if err != nil {
		t.Fatalf("Providers: %v", err)
	}
	if again[0].Name != "mirror-a" {
		t.Errorf("expected source's internal slice to be unaffected by caller mutation, got %q", again[0].Name)
	}
}

type fakeRegistry struct {
	replaced [][]domain.Provider
}

func (r *fakeRegistry) Snapshot() []domain.Provider { return nil }
func (r *fakeRegistry) Replace(providers []domain.Provider) {
	r.replaced = append(r.replaced, providers)
}

type failingSource struct{ calls int }

func (f *failingSource) Providers() ([]domain.Provider, error) {
	f.calls++
	return nil, errors.New("upstream list unavailable")
}

func TestRefresher_StartPropagatesInitialFailure(t *testing.T) {
	source := &failingSource{}
	registry := &fakeRegistry{}
	refresher := NewRefresher(source, registry, time.Hour, discardLogger())

	if err := refresher.Start(context.Background()); err == nil {
		t.Fatal("expected Start to propagate the initial refresh failure")
	}
	if source.calls != 1 {
		t.Errorf("expected exactly one initial refresh attempt, got %d", source.calls)
	}
}

func TestRefresher_StartInstallsInitialSnapshot(t *testing.T) {
	providers := []domain.Provider{{Name: "mirror-a", BaseURI: "https://a.example/"}}
	source := NewStaticSource(providers)
	registry := &fakeRegistry{}
	refresher := NewRefresher(source, registry, 0, discardLogger())

	if err := refresher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(registry.replaced) != 1 {
		t.Fatalf("expected one Replace call, got %d", len(registry.replaced))
	}
	if registry.replaced[0][0].Name != "mirror-a" {
		t.Errorf("expected the static provider list to be installed, got %+v", registry.replaced[0])
	}
}

func TestRefresher_ConsecutiveFailuresBackOff(t *testing.T) {
	source := &failingSource{}
	registry := &fakeRegistry{}
	refresher := NewRefresher(source, registry, 10*time.Millisecond, discardLogger())

	// First refreshOnce call (via refreshOnce directly) should record a
	// failure and leave consecutiveFailures non-zero.
	if err := refresher.refreshOnce(); err == nil {
		t.Fatal("expected refreshOnce to fail")
	}
	if refresher.consecutiveFailures != 1 {
		t.Errorf("expected consecutiveFailures 1, got %d", refresher.consecutiveFailures)
	}

	if err := refresher.refreshOnce(); err == nil {
		t.Fatal("expected refreshOnce to fail again")
	}
	if refresher.consecutiveFailures != 2 {
		t.Errorf("expected consecutiveFailures 2, got %d", refresher.consecutiveFailures)
	}
}
