package scheduler

import (
	"context"

	"github.com/arcmirror/arcproxy/internal/adapter/job"
	"github.com/arcmirror/arcproxy/internal/core/domain"
)

// run drives entry's execution loop: pick the
// lowest-ranked untried provider, acquire a channel, run a job, and
// classify the result until the order completes or every provider has
// been tried.
func (e *Engine) run(entry *orderEntry) {
	progressCtx, stopProgress := context.WithCancel(context.Background())
	go e.pumpProgress(progressCtx, entry)
	defer stopProgress()

	var lastErr error
	for {
		provider, ok := e.nextProvider(entry)
		if !ok {
			e.finishFailed(entry, &domain.ProvidersExhaustedError{
				Order:   entry.order,
				Tried:   entry.triedCount(),
				LastErr: lastErr,
			})
			return
		}

		ch, err := e.pool.Checkout(provider, entry.order)
		if err != nil {
			lastErr = err
			entry.markTried(provider.BaseURI)
			continue
		}

		startOffset, _ := ch.ProgressOffset()

		j, err := job.New(entry.order, provider, ch, e.lowSpeedFloorBytesPerSec, e.lowSpeedWindow)
		if err != nil {
			e.pool.Return(ch)
			e.finishFailed(entry, err)
			return
		}

		result := j.Execute()

		switch result.Kind {
		case domain.JobComplete:
			if err := e.files.MarkComplete(entry.order.Path); err != nil {
				e.logger.Warn("failed to mark order complete", "order", entry.order.Path, "error", err)
			}
			if size := entry.cacheFile.SizeWritten(); size > startOffset {
				e.bytesStreamed.Add(size - startOffset)
			}
			e.pool.Return(ch)
			e.finishComplete(entry)
			return

		case domain.JobPartial:
			e.bytesStreamed.Add(result.SizeWritten - startOffset)
			entry.markTried(provider.BaseURI)
			ch.Reset()
			e.pool.Return(ch)
			// loop: the next iteration's job sees the updated progress
			// indicator straight from the shared cache file.

		case domain.JobError:
			lastErr = result.Err
			entry.markTried(provider.BaseURI)
			ch.Reset()
			e.pool.Return(ch)
		}
	}
}

// nextProvider picks the lowest-scoring provider not yet tried this round,
// registry order is score-ascending, so the first
// untried entry is always the best remaining choice.
func (e *Engine) nextProvider(entry *orderEntry) (domain.Provider, bool) {
	for _, p := range e.registry.Snapshot() {
		if !entry.hasTried(p.BaseURI) {
			return p, true
		}
	}
	return domain.Provider{}, false
}

func (e *Engine) finishComplete(entry *orderEntry) {
	if !entry.finish() {
		return
	}
	entry.bus.Publish(domain.ProgressEvent{
		Kind:        domain.EventCompleted,
		Order:       entry.order,
		SizeWritten: entry.cacheFile.SizeWritten(),
	})
	e.removeEntry(entry)
}

func (e *Engine) finishFailed(entry *orderEntry, err error) {
	if !entry.finish() {
		return
	}
	entry.bus.Publish(domain.ProgressEvent{
		Kind:  domain.EventFailed,
		Order: entry.order,
		Err:   err,
	})
	e.removeEntry(entry)
}

// pumpProgress forwards the cache file's growth notifications onto the
// order's event bus as EventSizeWrittenAdvanced events, for as long as the
// order remains live.
func (e *Engine) pumpProgress(ctx context.Context, entry *orderEntry) {
	last := entry.cacheFile.SizeWritten()
	for {
		size, grew := entry.cacheFile.WaitForGrowth(ctx, last)
		if !grew {
			return
		}
		last = size
		entry.bus.Publish(domain.ProgressEvent{
			Kind:        domain.EventSizeWrittenAdvanced,
			Order:       entry.order,
			SizeWritten: size,
		})
	}
}
