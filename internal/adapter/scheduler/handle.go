package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arcmirror/arcproxy/internal/adapter/cachefile"
	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
)

// orderHandle is the ports.OrderHandle issued for a live (or just
// completed/failed) entry: every Schedule call for the same order,
// concurrent or sequential while the entry is live, gets its own handle
// over the same shared entry.
type orderHandle struct {
	entry  *orderEntry
	engine *Engine

	mu       sync.Mutex
	unsub    func()
	released atomic.Bool
}

func newOrderHandle(entry *orderEntry, engine *Engine) *orderHandle {
	return &orderHandle{entry: entry, engine: engine}
}

func (h *orderHandle) Order() domain.Order { return h.entry.order }

func (h *orderHandle) Events(ctx context.Context) <-chan domain.ProgressEvent {
	ch, cleanup := h.entry.bus.Subscribe(ctx)
	h.mu.Lock()
	h.unsub = cleanup
	h.mu.Unlock()
	return ch
}

func (h *orderHandle) CacheFile() ports.CacheFile { return h.entry.cacheFile }

func (h *orderHandle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	h.mu.Lock()
	unsub := h.unsub
	h.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	h.engine.releaseHandle(h.entry)
}

// cacheHitHandle is the ports.OrderHandle returned for an order whose
// cache file was already marked complete: no job runs, no provider is
// contacted, and the single observable event is an immediate Completed
// so a repeat fetch of an already-complete order never re-contacts upstream.
type cacheHitHandle struct {
	order    domain.Order
	cf       *cachefile.CacheFile
	files    *cachefile.Registry
	released atomic.Bool
}

func newCacheHitHandle(order domain.Order, cf *cachefile.CacheFile, files *cachefile.Registry) *cacheHitHandle {
	return &cacheHitHandle{order: order, cf: cf, files: files}
}

func (h *cacheHitHandle) Order() domain.Order { return h.order }

func (h *cacheHitHandle) Events(ctx context.Context) <-chan domain.ProgressEvent {
	out := make(chan domain.ProgressEvent, 1)
	out <- domain.ProgressEvent{
		Kind:        domain.EventCompleted,
		Order:       h.order,
		SizeWritten: h.cf.SizeWritten(),
	}
	close(out)
	return out
}

func (h *cacheHitHandle) CacheFile() ports.CacheFile { return h.cf }

func (h *cacheHitHandle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	h.files.Release(h.order.Path)
}
