// Package cachefile implements the cache file sink: an append-only
// on-disk object addressed by an order's path, readable by concurrent
// fan-out consumers while a single job writes it.
package cachefile

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/arcmirror/arcproxy/internal/core/domain"
)

// CacheFile is the concrete ports.CacheFile implementation. Size-written is
// published through an atomically-replaced "growth channel": every writer
// that advances the file closes the current channel, waking every blocked
// waiter, and installs a fresh one for the next wait.
type CacheFile struct {
	path string

	mu     sync.Mutex
	f      *os.File
	size   int64
	closed bool

	growthMu sync.Mutex
	growthCh chan struct{}
}

// Open opens path for append, creating parent directories and the file
// itself if absent, and adopts the file's current length as size-written
// so a pre-existing file resumes across process restarts.
func Open(path string) (*CacheFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &CacheFile{
		path:     path,
		f:        f,
		size:     info.Size(),
		growthCh: make(chan struct{}),
	}, nil
}

// Write implements ports.Sink, writing p at the current size-written
// offset and advancing it. Single-writer; callers (the active
// job for this order) must not call Write concurrently with each other.
func (c *CacheFile) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, &domain.SinkError{Path: c.path, Err: os.ErrClosed}
	}

	n, err := c.f.WriteAt(p, c.size)
	if n > 0 {
		c.size += int64(n)
		c.notifyGrowth()
	}
	if err != nil {
		return n, &domain.SinkError{Path: c.path, Err: err}
	}
	return n, nil
}

// SizeWritten returns the number of bytes durably written so far.
func (c *CacheFile) SizeWritten() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Rewind truncates the file back to size, discarding any bytes beyond it.
// Used when a resumed request turns out to have been answered with a full
// 200 body, or when an HTTP failure status must invalidate progress made
// by the same response (resolved as "always
// rewind").
func (c *CacheFile) Rewind(size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.f.Truncate(size); err != nil {
		return err
	}
	c.size = size
	c.notifyGrowth()
	return nil
}

// NewReader opens an independent read cursor over the file, for fan-out
// consumers reading concurrently with the active writer.
func (c *CacheFile) NewReader() (io.ReadCloser, error) {
	return os.Open(c.path)
}

// WaitForGrowth blocks until size-written exceeds after, the file is
// closed, or ctx is done. Returns the observed size and whether it grew
// past after (false on ctx cancellation or a close with no further
// growth).
func (c *CacheFile) WaitForGrowth(ctx waiter, after int64) (int64, bool) {
	for {
		c.mu.Lock()
		cur := c.size
		closed := c.closed
		c.mu.Unlock()

		if cur > after {
			return cur, true
		}
		if closed {
			return cur, false
		}

		c.growthMu.Lock()
		ch := c.growthCh
		c.growthMu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return cur, false
		}
	}
}

// waiter is the subset of context.Context WaitForGrowth needs, kept
// unexported so callers pass a real context.Context without an import
// cycle back into domain.
type waiter interface {
	Done() <-chan struct{}
}

func (c *CacheFile) notifyGrowth() {
	c.growthMu.Lock()
	ch := c.growthCh
	c.growthCh = make(chan struct{})
	c.growthMu.Unlock()
	close(ch)
}

// Close closes the underlying file descriptor and wakes any blocked
// waiters. It does not delete the file: cache files outlive the process.
func (c *CacheFile) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	err := c.f.Close()
	c.mu.Unlock()

	c.notifyGrowth()
	return err
}
