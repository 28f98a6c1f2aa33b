package ports

import (
	"time"

	"github.com/arcmirror/arcproxy/internal/core/domain"
)

// Sink receives the bytes a TransferHandle pulls off the wire. Write must
// return the number of bytes consumed; returning fewer bytes than len(p)
// with a nil error is treated as a short write error, matching the
// io.Writer contract.
type Sink interface {
	Write(p []byte) (n int, err error)
}

// TransferHandle is the engine's black-box view of a byte transport to a
// single upstream URL. Any concurrency (timeouts, watchdogs) lives inside
// the concrete implementation, never in the engine.
type TransferHandle interface {
	// SetURL is idempotent; binds the next transfer to u.
	SetURL(u string)

	// SetResumeFrom requests a byte range starting at offset on the next
	// Perform call.
	SetResumeFrom(offset int64)

	// SetFollowRedirects enables or disables transparent 3xx chasing.
	SetFollowRedirects(follow bool)

	// SetLowSpeedFloor aborts the transfer if throughput falls below
	// bytesPerSec sustained over duration.
	SetLowSpeedFloor(bytesPerSec int64, duration time.Duration)

	// Perform executes the transfer synchronously, delivering each
	// received chunk to sink. Returns nil on a clean end-of-body, or an
	// error describing the network/protocol failure.
	Perform(sink Sink) error

	ResponseCode() int
	NameLookupTime() time.Duration
	ConnectTime() time.Duration
}

// TransferHandleFactory constructs a TransferHandle bound to a provider.
// Concrete channel pools use this to build the handle once per channel and
// reuse it across orders.
type TransferHandleFactory interface {
	New(provider domain.Provider) TransferHandle
}
