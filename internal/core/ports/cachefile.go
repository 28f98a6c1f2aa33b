package ports

import "io"

// CacheFile is the append-only on-disk object addressed by an order. The
// prefix of length SizeWritten is immutable and identical to the upstream
// object's prefix; SizeWritten only grows within one process's view.
type CacheFile interface {
	Sink

	// SizeWritten returns the number of bytes durably written so far.
	SizeWritten() int64

	// Rewind truncates the file back to size and resets SizeWritten. Used
	// when a resumed range request turns out to have been answered with a
	// full 200 body instead of a 206, or when an HTTP failure status
	// arrives after a resume and progress must be discarded.
	Rewind(size int64) error

	// NewReader opens an independent read cursor over the file, used by
	// fan-out consumers that read concurrently with the active writer.
	NewReader() (io.ReadCloser, error)

	Close() error
}
