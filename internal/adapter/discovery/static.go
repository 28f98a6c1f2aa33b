// Package discovery implements the provider-discovery collaborator:
// out of scope for the job-execution engine itself, but needed to produce
// the ranked snapshot the engine's registry consumes.
package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
	"github.com/arcmirror/arcproxy/internal/util"
)

// StaticSource implements ports.ProviderSource over a fixed, config-loaded
// provider list. Latency probing is out of scope; scores arrive
// pre-computed from configuration.
type StaticSource struct {
	providers []domain.Provider
}

// NewStaticSource builds a StaticSource from already-parsed providers.
func NewStaticSource(providers []domain.Provider) *StaticSource {
	return &StaticSource{providers: providers}
}

func (s *StaticSource) Providers() ([]domain.Provider, error) {
	out := make([]domain.Provider, len(s.providers))
	copy(out, s.providers)
	return out, nil
}

// Refresher periodically re-pulls a ProviderSource and installs the result
// into a registry, so a static provider list edited on disk (and reloaded
// by the config watcher) eventually reaches the engine without a restart.
type Refresher struct {
	source   ports.ProviderSource
	registry ports.ProviderRegistry
	interval time.Duration
	logger   *slog.Logger

	consecutiveFailures int
}

// NewRefresher constructs a Refresher. registry is accessed through the
// ports.ProviderRegistry interface so the refresher doesn't depend on the
// concrete registry package.
func NewRefresher(source ports.ProviderSource, registry ports.ProviderRegistry, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		source:   source,
		registry: registry,
		interval: interval,
		logger:   logger,
	}
}

// Start installs an initial snapshot immediately, then refreshes on
// interval until ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	if err := r.refreshOnce(); err != nil {
		return err
	}

	if r.interval <= 0 {
		return nil
	}

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.refreshOnce(); err != nil {
					backoff := util.CalculateConnectionRetryBackoff(r.consecutiveFailures)
					r.logger.Warn("provider refresh failed, backing off", "error", err, "backoff", backoff, "consecutive_failures", r.consecutiveFailures)
					time.Sleep(backoff)
				}
			}
		}
	}()

	return nil
}

func (r *Refresher) refreshOnce() error {
	providers, err := r.source.Providers()
	if err != nil {
		r.consecutiveFailures++
		return err
	}
	r.consecutiveFailures = 0
	r.registry.Replace(providers)
	r.logger.Info("provider registry refreshed", "count", len(providers))
	return nil
}
