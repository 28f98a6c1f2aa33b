package ports

import (
	"context"

	"github.com/arcmirror/arcproxy/internal/core/domain"
)

// OrderHandle is what the scheduler exposes to the front-end for a single
// scheduled order: a way to observe size-written/completed/failed events
// and to read back out the cache file as it grows.
type OrderHandle interface {
	Order() domain.Order

	// Events delivers ProgressEvent values until the order reaches a
	// terminal state (EventCompleted or EventFailed) or ctx is done.
	Events(ctx context.Context) <-chan domain.ProgressEvent

	// CacheFile exposes the order's cache file so a front-end can stream
	// bytes [0, SizeWritten) to a client while the job is still running.
	CacheFile() CacheFile

	// Release decrements the handle's waiter count; the engine drops the
	// order's bookkeeping once every handle issued for it has released
	// and the order has reached a terminal state.
	Release()
}

// Engine is the job-execution engine's external surface: the scheduler
// as seen by the front-end.
type Engine interface {
	// Schedule enqueues order, or folds into an already-running attempt
	// for the same order (fan-out): the upstream is fetched at most once
	// regardless of how many callers schedule the same order concurrently.
	Schedule(ctx context.Context, order domain.Order) (OrderHandle, error)

	// Stats reports engine-wide counters for the front-end's stats route.
	Stats() EngineStats
}

// EngineStats is a point-in-time snapshot of engine activity.
type EngineStats struct {
	OrdersServed  int64
	CacheHits     int64
	BytesStreamed int64
	ActiveJobs    int64
}
