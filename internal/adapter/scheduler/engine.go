// Package scheduler implements the job context and scheduler: the
// engine that accepts orders, selects providers, assigns channels, retries
// partial results on alternate providers, and fans out bytes to waiting
// clients.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcmirror/arcproxy/internal/adapter/cachefile"
	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
)

// Engine is the concrete ports.Engine implementation.
type Engine struct {
	registry ports.ProviderRegistry
	pool     ports.ChannelPool
	files    *cachefile.Registry
	logger   *slog.Logger

	lowSpeedFloorBytesPerSec int64
	lowSpeedWindow           time.Duration

	mu     sync.Mutex
	orders map[string]*orderEntry

	ordersServed  atomic.Int64
	cacheHits     atomic.Int64
	bytesStreamed atomic.Int64
	activeJobs    atomic.Int64
}

// New constructs an Engine. registry supplies the ranked provider
// snapshot, pool hands out channels, files owns the on-disk cache-file
// objects shared between writers and readers.
func New(registry ports.ProviderRegistry, pool ports.ChannelPool, files *cachefile.Registry, logger *slog.Logger, lowSpeedFloorBytesPerSec int64, lowSpeedWindow time.Duration) *Engine {
	return &Engine{
		registry:                 registry,
		pool:                     pool,
		files:                    files,
		logger:                   logger,
		lowSpeedFloorBytesPerSec: lowSpeedFloorBytesPerSec,
		lowSpeedWindow:           lowSpeedWindow,
		orders:                   make(map[string]*orderEntry),
	}
}

// Schedule enqueues order, or folds into an already-running attempt for
// the same order: the upstream is fetched at most once regardless of how
// many callers schedule the same order concurrently.
func (e *Engine) Schedule(ctx context.Context, order domain.Order) (ports.OrderHandle, error) {
	if e.files.IsComplete(order.Path) {
		cf, err := e.files.Acquire(order.Path)
		if err != nil {
			return nil, err
		}
		e.cacheHits.Add(1)
		e.ordersServed.Add(1)
		return newCacheHitHandle(order, cf, e.files), nil
	}

	entry, err := e.acquireEntry(order)
	if err != nil {
		return nil, err
	}
	return newOrderHandle(entry, e), nil
}

// acquireEntry returns the live orderEntry for order, folding into an
// already-running attempt if one exists or starting a new one. Every
// successful call increments the returned entry's waiter count exactly
// once, whether it folded into an existing entry or created one: each
// caller's eventual Release must balance 1:1 against this increment, so
// the count can never go out from under a handle that's still live.
//
// e.mu guards bookkeeping only; the cache-file open (real I/O) runs
// outside the lock. A second map check after the open reconciles against
// a concurrent caller that created the entry in the meantime, so the lock
// is never held across I/O yet the map can't end up with two entries for
// the same order.
func (e *Engine) acquireEntry(order domain.Order) (*orderEntry, error) {
	e.mu.Lock()
	if entry, exists := e.orders[order.Path]; exists {
		entry.addWaiter()
		e.mu.Unlock()
		return entry, nil
	}
	e.mu.Unlock()

	cf, err := e.files.Acquire(order.Path)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if entry, exists := e.orders[order.Path]; exists {
		entry.addWaiter()
		e.mu.Unlock()
		e.files.Release(order.Path)
		return entry, nil
	}

	entry := newOrderEntry(order, cf)
	entry.addWaiter()
	e.orders[order.Path] = entry
	e.mu.Unlock()

	e.ordersServed.Add(1)
	e.activeJobs.Add(1)
	go e.run(entry)

	return entry, nil
}

// Stats reports engine-wide counters for the front-end's stats route.
func (e *Engine) Stats() ports.EngineStats {
	return ports.EngineStats{
		OrdersServed:  e.ordersServed.Load(),
		CacheHits:     e.cacheHits.Load(),
		BytesStreamed: e.bytesStreamed.Load(),
		ActiveJobs:    e.activeJobs.Load(),
	}
}

// releaseHandle is called by an orderHandle when its caller is done with
// it; once every issued handle has released and the order reached a
// terminal state, the entry's resources are torn down.
func (e *Engine) releaseHandle(entry *orderEntry) {
	if entry.release() {
		entry.bus.Shutdown()
		e.files.Release(entry.order.Path)
	}
}

// removeEntry drops entry from the live-order table once it reaches a
// terminal state, so a later Schedule for the same path starts a fresh
// attempt rather than folding into a finished one.
func (e *Engine) removeEntry(entry *orderEntry) {
	e.mu.Lock()
	if e.orders[entry.order.Path] == entry {
		delete(e.orders, entry.order.Path)
	}
	e.mu.Unlock()
	e.activeJobs.Add(-1)
}
