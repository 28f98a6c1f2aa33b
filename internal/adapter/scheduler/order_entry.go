package scheduler

import (
	"sync"

	"github.com/arcmirror/arcproxy/internal/adapter/cachefile"
	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/pkg/eventbus"
)

// orderEntry is the per-order bookkeeping record: the set of
// providers already tried this round, the waiter count, and the shared
// cache file and event bus every OrderHandle issued for this order talks
// through.
type orderEntry struct {
	order     domain.Order
	cacheFile *cachefile.CacheFile
	bus       *eventbus.EventBus[domain.ProgressEvent]

	mu       sync.Mutex
	tried    map[string]struct{}
	waiters  int
	terminal bool
}

func newOrderEntry(order domain.Order, cf *cachefile.CacheFile) *orderEntry {
	return &orderEntry{
		order:     order,
		cacheFile: cf,
		bus:       eventbus.NewWithConfig[domain.ProgressEvent](eventbus.EventBusConfig{BufferSize: 64}),
		tried:     make(map[string]struct{}),
	}
}

// markTried records that provider's base URI has been attempted and must
// not be retried for this order in the same scheduling round.
func (e *orderEntry) markTried(baseURI string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tried[baseURI] = struct{}{}
}

func (e *orderEntry) hasTried(baseURI string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.tried[baseURI]
	return ok
}

func (e *orderEntry) triedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tried)
}

func (e *orderEntry) addWaiter() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waiters++
}

// release decrements the waiter count and reports whether the entry's
// resources (event bus, cache file reference) are now safe to tear down:
// every issued handle has released and the order has reached a terminal
// state.
func (e *orderEntry) release() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waiters--
	return e.waiters <= 0 && e.terminal
}

// finish marks the entry terminal exactly once, returning false if it was
// already terminal (a duplicate classification race the caller should
// ignore).
func (e *orderEntry) finish() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal {
		return false
	}
	e.terminal = true
	return true
}
