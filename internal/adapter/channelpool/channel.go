// Package channelpool implements the channel and channel pool: a
// reusable transport context bound to one provider, pooled and rebound
// across orders so a keep-alive connection survives between downloads.
package channelpool

import (
	"sync"

	"github.com/arcmirror/arcproxy/internal/adapter/cachefile"
	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
)

// Channel is the concrete ports.Channel implementation. Its lifecycle tag
// (idle / bound / reset-pending) is a sum type rather than a boolean plus
// nullable order, so the pool can never mistake a reset-pending channel
// for one safe to hand out again.
type Channel struct {
	handle   ports.TransferHandle
	provider domain.Provider
	registry *cachefile.Registry

	mu        sync.Mutex
	state     ports.ChannelState
	order     domain.Order
	hasOrder  bool
	cacheFile *cachefile.CacheFile
}

func newChannel(handle ports.TransferHandle, provider domain.Provider, registry *cachefile.Registry) *Channel {
	return &Channel{
		handle:   handle,
		provider: provider,
		registry: registry,
		state:    ports.ChannelIdle,
	}
}

func (c *Channel) Handle() ports.TransferHandle { return c.handle }

func (c *Channel) Provider() domain.Provider { return c.provider }

func (c *Channel) State() ports.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) BoundOrder() (domain.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order, c.hasOrder
}

func (c *Channel) ProgressOffset() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cacheFile == nil {
		return 0, false
	}
	size := c.cacheFile.SizeWritten()
	return size, size > 0
}

// ResetOrder rebinds the channel to newOrder, releasing the previously
// bound order's cache file and acquiring newOrder's from the shared
// registry so size-written is observed consistently by every reader. A
// no-op if newOrder is already bound.
func (c *Channel) ResetOrder(newOrder domain.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasOrder && c.order == newOrder {
		return nil
	}

	cf, err := c.registry.Acquire(newOrder.Path)
	if err != nil {
		return err
	}

	if c.hasOrder {
		c.registry.Release(c.order.Path)
	}

	c.order = newOrder
	c.hasOrder = true
	c.cacheFile = cf
	c.state = ports.ChannelBound
	return nil
}

// Reset marks the channel reset-pending: the transport state is uncertain
// after a failed job, so the pool must discard it rather than hand it out
// again.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ports.ChannelResetPending
}

func (c *Channel) CacheFile() ports.CacheFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cacheFile == nil {
		return nil
	}
	return c.cacheFile
}

// Close releases the channel's bound order's cache file reference. It does
// not close the transfer handle: handles carry no lifecycle of their own
// in the ports.TransferHandle contract.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasOrder {
		c.registry.Release(c.order.Path)
		c.hasOrder = false
		c.cacheFile = nil
	}
	return nil
}
