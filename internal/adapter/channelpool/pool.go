package channelpool

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arcmirror/arcproxy/internal/adapter/cachefile"
	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
)

// DefaultCapacity bounds the total number of idle channels retained across
// all providers. A provider that stops being used eventually has its idle
// channels evicted and their connections released rather than held open
// forever.
const DefaultCapacity = 256

// Pool implements ports.ChannelPool. Idle channels are tracked per
// provider for checkout and, together, in an LRU keyed by channel
// identity so the least-recently-returned channel is evicted first once
// the pool's capacity is exceeded (the pool has no hard size limit;
// a bounded LRU is this implementation's concrete retirement policy).
type Pool struct {
	factory  ports.TransferHandleFactory
	registry *cachefile.Registry

	mu             sync.Mutex
	idleByProvider map[string][]*Channel
	idle           *lru.Cache[*Channel, struct{}]
	suppressEvict  map[*Channel]bool
}

// NewPool constructs a Pool with capacity idle channels retained across
// all providers before the least-recently-used is evicted and its
// transport connection released.
func NewPool(factory ports.TransferHandleFactory, registry *cachefile.Registry, capacity int) (*Pool, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	p := &Pool{
		factory:        factory,
		registry:       registry,
		idleByProvider: make(map[string][]*Channel),
		suppressEvict:  make(map[*Channel]bool),
	}

	idle, err := lru.NewWithEvict[*Channel, struct{}](capacity, p.onEvict)
	if err != nil {
		return nil, err
	}
	p.idle = idle
	return p, nil
}

// onEvict fires when the LRU drops a channel, either because capacity was
// exceeded on Add or because Checkout explicitly forgot it (suppressed).
// Only the capacity-eviction case should actually close the channel.
func (p *Pool) onEvict(ch *Channel, _ struct{}) {
	if p.suppressEvict[ch] {
		return
	}
	p.removeFromProviderStack(ch)
	_ = ch.Close()
}

func (p *Pool) removeFromProviderStack(ch *Channel) {
	stack := p.idleByProvider[ch.provider.BaseURI]
	for i, c := range stack {
		if c == ch {
			p.idleByProvider[ch.provider.BaseURI] = append(stack[:i], stack[i+1:]...)
			return
		}
	}
}

// Checkout returns an idle channel for provider bound to order, reusing a
// pooled one when available (refusing anything ChannelResetPending) or
// constructing a new one.
func (p *Pool) Checkout(provider domain.Provider, order domain.Order) (ports.Channel, error) {
	ch := p.takeIdle(provider)
	if ch == nil {
		ch = newChannel(p.factory.New(provider), provider, p.registry)
	}

	if err := ch.ResetOrder(order); err != nil {
		return nil, err
	}
	return ch, nil
}

// takeIdle pops the most recently returned idle channel for provider,
// discarding (and closing) any reset-pending ones it encounters first.
func (p *Pool) takeIdle(provider domain.Provider) *Channel {
	p.mu.Lock()
	defer p.mu.Unlock()

	stack := p.idleByProvider[provider.BaseURI]
	for len(stack) > 0 {
		ch := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p.idleByProvider[provider.BaseURI] = stack

		p.forget(ch)

		if ch.State() == ports.ChannelResetPending {
			_ = ch.Close()
			continue
		}
		return ch
	}
	return nil
}

// forget removes ch from the LRU without triggering the closing side of
// onEvict: the channel is about to be handed out, not retired.
func (p *Pool) forget(ch *Channel) {
	p.suppressEvict[ch] = true
	p.idle.Remove(ch)
	delete(p.suppressEvict, ch)
}

// Return hands a channel back to the pool. A channel left
// ChannelResetPending by a failed job is closed instead of pooled: the
// transport state is uncertain and must not be reused (honouring
// is_reset).
func (p *Pool) Return(ch ports.Channel) {
	concrete, ok := ch.(*Channel)
	if !ok {
		return
	}

	if concrete.State() == ports.ChannelResetPending {
		_ = concrete.Close()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	baseURI := concrete.provider.BaseURI
	p.idleByProvider[baseURI] = append(p.idleByProvider[baseURI], concrete)
	p.idle.Add(concrete, struct{}{})
}
