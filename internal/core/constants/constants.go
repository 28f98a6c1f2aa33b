// Package constants collects the tunables shared across the job-execution
// engine so they don't drift between the scheduler, transport and config
// packages.
package constants

import "time"

const (
	// ScoreScale is a fixed-point scale factor for floating-point latency
	// scores. Nothing in the module applies it: domain.NewScore ranks
	// providers on integer nanoseconds taken straight from time.Duration
	// values, so ordering never has to reason about NaN or float rounding.
	ScoreScale = 1_000_000_000_000_000

	// DefaultLowSpeedFloorBytesPerSec is the default throughput below which
	// a transfer is considered stalled.
	DefaultLowSpeedFloorBytesPerSec = 1024

	// DefaultLowSpeedFloorDuration is how long throughput may stay below
	// the floor before the transfer is aborted.
	DefaultLowSpeedFloorDuration = 10 * time.Second

	// DefaultConnectTimeout bounds how long a channel waits to establish
	// the underlying TCP/TLS connection to a provider.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultIdleChannelTTL is an idle-channel lifetime that nothing in the
	// module reads: channelpool.Pool retires idle channels by LRU capacity
	// only, never by age.
	DefaultIdleChannelTTL = 5 * time.Minute

	// DefaultMaxBackoffSeconds caps exponential/linear backoff computations
	// used when a provider is repeatedly failing.
	DefaultMaxBackoffSeconds = 5 * time.Minute

	// ConnectionRetryBackoffMultiplier is the per-failure linear backoff
	// step, in seconds, applied by util.CalculateConnectionRetryBackoff.
	ConnectionRetryBackoffMultiplier = 2

	// DefaultProviderRefreshInterval is how often the discovery collaborator
	// is asked to refresh the provider registry snapshot.
	DefaultProviderRefreshInterval = 30 * time.Second
)

// HeaderRange is the byte-range header the transfer handle sends when
// resuming from a provider. The other three name the front-end side of byte
// ranges; the front-end neither sets nor reads them.
const (
	HeaderRange         = "Range"
	HeaderContentRange  = "Content-Range"
	HeaderAcceptRanges  = "Accept-Ranges"
	HeaderContentLength = "Content-Length"
)
