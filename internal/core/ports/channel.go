package ports

import "github.com/arcmirror/arcproxy/internal/core/domain"

// ChannelState tags a Channel's lifecycle as a sum type rather than a
// boolean plus nullable order, so a channel can never be simultaneously
// bound and reset in a way the compiler can't see.
type ChannelState int

const (
	ChannelIdle ChannelState = iota
	ChannelBound
	ChannelResetPending
)

// Channel pairs a TransferHandle with per-connection state. Tied to exactly
// one provider for its lifetime; rebound to new orders via ResetOrder.
type Channel interface {
	Handle() TransferHandle
	Provider() domain.Provider

	// State reports the channel's current lifecycle tag.
	State() ChannelState

	// BoundOrder reports the order currently bound, and whether one is
	// bound at all.
	BoundOrder() (domain.Order, bool)

	// ProgressOffset reports the known size-written for the bound order;
	// ok is false if the bound order has no prior progress (a fresh
	// download rather than a resume).
	ProgressOffset() (offset int64, ok bool)

	// ResetOrder rebinds the channel to newOrder, opening its cache file
	// and adopting the file's current length as progress. A no-op if
	// newOrder is already bound.
	ResetOrder(newOrder domain.Order) error

	// Reset marks the channel ChannelResetPending; the pool must discard
	// it rather than hand it out again.
	Reset()

	CacheFile() CacheFile

	Close() error
}

// ChannelPool pools channels keyed by provider identity. The number of
// channels checked out at once has no hard limit; an implementation may
// bound how many idle channels it retains (channelpool.Pool evicts the
// least-recently-returned idle channel once its capacity is exceeded).
type ChannelPool interface {
	// Checkout returns an idle channel for provider bound to order, either
	// reusing one from the pool (refusing anything ChannelResetPending) or
	// constructing a new one.
	Checkout(provider domain.Provider, order domain.Order) (Channel, error)

	// Return hands a channel back to the pool. A channel in
	// ChannelResetPending is dropped instead of pooled.
	Return(ch Channel)
}
