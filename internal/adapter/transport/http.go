// Package transport implements the transfer handle: an HTTP transport
// binding to a single upstream URL, with redirect-following, Range-header
// resume, and a low-speed floor watchdog.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/arcmirror/arcproxy/internal/core/constants"
	"github.com/arcmirror/arcproxy/internal/core/ports"
	"github.com/arcmirror/arcproxy/pkg/pool"
)

// readBufferSize is the chunk size pulled from the response body on each
// Perform read. Pooled across transfers so a busy proxy doesn't churn one
// 32KB allocation per job.
const readBufferSize = 32 * 1024

var readBufferPool = pool.NewLitePool(func() *[]byte {
	b := make([]byte, readBufferSize)
	return &b
})

// HTTPHandle is the concrete ports.TransferHandle implementation. The
// engine treats it as a black box; all concurrency (the watchdog goroutine)
// lives here, never in the scheduler.
type HTTPHandle struct {
	client *http.Client

	url             string
	resumeFrom      int64
	followRedirects bool
	lowSpeedBytes   int64
	lowSpeedWindow  time.Duration

	responseCode   int
	nameLookupTime time.Duration
	connectTime    time.Duration
}

// NewHTTPHandle builds a handle bound to no URL yet; SetURL must be called
// before Perform.
func NewHTTPHandle(client *http.Client) *HTTPHandle {
	if client == nil {
		client = &http.Client{Timeout: 0}
	}
	return &HTTPHandle{
		client:          client,
		followRedirects: true,
	}
}

func (h *HTTPHandle) SetURL(u string) {
	h.url = u
}

func (h *HTTPHandle) SetResumeFrom(offset int64) {
	h.resumeFrom = offset
}

func (h *HTTPHandle) SetFollowRedirects(follow bool) {
	h.followRedirects = follow
}

func (h *HTTPHandle) SetLowSpeedFloor(bytesPerSec int64, duration time.Duration) {
	h.lowSpeedBytes = bytesPerSec
	h.lowSpeedWindow = duration
}

func (h *HTTPHandle) ResponseCode() int { return h.responseCode }

func (h *HTTPHandle) NameLookupTime() time.Duration { return h.nameLookupTime }

func (h *HTTPHandle) ConnectTime() time.Duration { return h.connectTime }

// Perform executes the transfer synchronously, feeding every received chunk
// to sink. A low-speed floor watchdog monitors a token bucket sized to
// lowSpeedBytes/sec and cancels the request's context if no tokens have
// been consumed inside lowSpeedWindow.
func (h *HTTPHandle) Perform(sink ports.Sink) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if h.resumeFrom > 0 {
		req.Header.Set(constants.HeaderRange, "bytes="+strconv.FormatInt(h.resumeFrom, 10)+"-")
	}
	h.resumeFrom = 0

	var nameLookupTime, connectTime time.Duration
	var dnsStart, connectStart time.Time
	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone: func(httptrace.DNSDoneInfo) {
			if !dnsStart.IsZero() {
				nameLookupTime = time.Since(dnsStart)
			}
		},
		ConnectStart: func(_, _ string) { connectStart = time.Now() },
		ConnectDone: func(_, _ string, _ error) {
			if !connectStart.IsZero() {
				connectTime = time.Since(connectStart)
			}
		},
		// GotConn fires even when the connection is reused from the pool;
		// connectTime stays zero in that case since neither ConnectStart
		// nor ConnectDone fire for a pooled connection.
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	client := h.client
	if !h.followRedirects {
		client = &http.Client{
			Timeout: client.Timeout,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	h.nameLookupTime = nameLookupTime
	h.connectTime = connectTime
	h.responseCode = resp.StatusCode

	var watchdog *lowSpeedWatchdog
	if h.lowSpeedBytes > 0 && h.lowSpeedWindow > 0 {
		watchdog = newLowSpeedWatchdog(h.lowSpeedBytes, h.lowSpeedWindow, cancel)
		go watchdog.run(ctx)
		defer watchdog.stop()
	}

	bufPtr := readBufferPool.Get()
	defer readBufferPool.Put(bufPtr)
	buf := *bufPtr

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if watchdog != nil {
				watchdog.observe(int64(n))
			}
			if _, writeErr := writeAll(sink, buf[:n]); writeErr != nil {
				return writeErr
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

func writeAll(sink ports.Sink, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := sink.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// lowSpeedWatchdog aborts a transfer whose throughput has stayed below a
// floor for a sustained window. bytesThisTick uses a token-bucket limiter
// as the per-second byte counter: each tick reserves (drains) however many
// tokens observe() reported since the last tick, and whatever remains
// unconsumed is the shortfall against the floor.
type lowSpeedWatchdog struct {
	limiter       *rate.Limiter
	floor         int64
	window        time.Duration
	belowFloor    time.Duration
	bytesThisTick atomic.Int64
	cancel        context.CancelFunc
	done          chan struct{}
}

func newLowSpeedWatchdog(bytesPerSec int64, window time.Duration, cancel context.CancelFunc) *lowSpeedWatchdog {
	return &lowSpeedWatchdog{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec)),
		floor:   bytesPerSec,
		window:  window,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// observe records n bytes received since the last tick.
func (w *lowSpeedWatchdog) observe(n int64) {
	w.bytesThisTick.Add(n)
}

func (w *lowSpeedWatchdog) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			seen := w.bytesThisTick.Swap(0)
			if seen >= w.floor {
				w.belowFloor = 0
				// Bank the surplus as credit against a future slow tick.
				w.limiter.AllowN(time.Now(), int(seen-w.floor))
				continue
			}
			if w.limiter.AllowN(time.Now(), int(w.floor-seen)) {
				// Banked credit from an earlier burst covers this tick's
				// shortfall; don't count it against belowFloor.
				continue
			}
			w.belowFloor += time.Second
			if w.belowFloor >= w.window {
				w.cancel()
				return
			}
		}
	}
}

func (w *lowSpeedWatchdog) stop() {
	close(w.done)
}
