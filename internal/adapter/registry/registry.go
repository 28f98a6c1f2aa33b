// Package registry implements the provider registry: a ranked
// provider snapshot, stable under reads and replaced atomically on
// refresh.
package registry

import (
	"sort"
	"sync/atomic"

	"github.com/arcmirror/arcproxy/internal/core/domain"
)

// Registry holds the current provider snapshot behind an atomic pointer so
// Snapshot never blocks a concurrent Replace and a reader's slice is never
// mutated out from under it mid-iteration.
type Registry struct {
	providers atomic.Pointer[[]domain.Provider]
}

// New constructs a Registry, optionally seeded with an initial provider
// list (already sorted by Replace).
func New(initial []domain.Provider) *Registry {
	r := &Registry{}
	r.Replace(initial)
	return r
}

// Snapshot returns the current provider ordering, score-ascending. The
// returned slice is never mutated by the registry; callers may range over
// it without synchronisation.
func (r *Registry) Snapshot() []domain.Provider {
	p := r.providers.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Replace installs providers as the registry's new contents, sorted by
// (ConnectDuration, NameLookupDuration) ascending so Snapshot never sorts
// under a reader.
func (r *Registry) Replace(providers []domain.Provider) {
	sorted := make([]domain.Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score.Less(sorted[j].Score)
	})
	r.providers.Store(&sorted)
}
