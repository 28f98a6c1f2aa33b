package ports

import "github.com/arcmirror/arcproxy/internal/core/domain"

// ProviderRegistry holds the ranked list of upstream providers. Stable
// under reads; replaced wholesale on refresh, never mutated in place.
type ProviderRegistry interface {
	// Snapshot returns the current provider ordering, score-ascending.
	// Concurrent Replace calls do not affect an already-taken snapshot.
	Snapshot() []domain.Provider

	// Replace installs a new provider list as the registry's contents.
	Replace(providers []domain.Provider)
}

// ProviderSource is the external collaborator that supplies provider
// snapshots to a ProviderRegistry: static config, a catalog fetch, or a
// periodic refresh. Provider discovery itself is out of scope for the
// engine; this is the seam it plugs into.
type ProviderSource interface {
	Providers() ([]domain.Provider, error)
}
