package channelpool

import (
	"testing"
	"time"

	"github.com/arcmirror/arcproxy/internal/adapter/cachefile"
	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
)

type fakeHandle struct{ provider domain.Provider }

func (f *fakeHandle) SetURL(string)                             {}
func (f *fakeHandle) SetResumeFrom(int64)                       {}
func (f *fakeHandle) SetFollowRedirects(bool)                   {}
func (f *fakeHandle) SetLowSpeedFloor(int64, time.Duration)     {}
func (f *fakeHandle) Perform(ports.Sink) error                  { return nil }
func (f *fakeHandle) ResponseCode() int                         { return 200 }
func (f *fakeHandle) NameLookupTime() time.Duration             { return 0 }
func (f *fakeHandle) ConnectTime() time.Duration                { return 0 }

type fakeFactory struct{ built int }

func (f *fakeFactory) New(p domain.Provider) ports.TransferHandle {
	f.built++
	return &fakeHandle{provider: p}
}

func testProvider(name string) domain.Provider {
	return domain.Provider{Name: name, BaseURI: "https://" + name + ".example/"}
}

func TestPool_CheckoutReusesReturnedChannel(t *testing.T) {
	factory := &fakeFactory{}
	files := cachefile.NewRegistry(t.TempDir())
	pool, err := NewPool(factory, files, 4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	provider := testProvider("mirror-a")
	order, _ := domain.NewOrder("debian/pool/a.deb")

	ch1, err := pool.Checkout(provider, order)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	pool.Return(ch1)

	ch2, err := pool.Checkout(provider, order)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if ch1 != ch2 {
		t.Error("expected Checkout to reuse the returned channel")
	}
	if factory.built != 1 {
		t.Errorf("expected exactly one handle built, got %d", factory.built)
	}
}

func TestPool_ResetPendingChannelIsNotReused(t *testing.T) {
	factory := &fakeFactory{}
	files := cachefile.NewRegistry(t.TempDir())
	pool, err := NewPool(factory, files, 4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	provider := testProvider("mirror-b")
	order, _ := domain.NewOrder("debian/pool/b.deb")

	ch1, err := pool.Checkout(provider, order)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	ch1.Reset()
	pool.Return(ch1)

	ch2, err := pool.Checkout(provider, order)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if ch1 == ch2 {
		t.Error("expected a reset-pending channel to never be reused")
	}
	if factory.built != 2 {
		t.Errorf("expected a fresh handle to be built, got %d total", factory.built)
	}
}

func TestPool_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	factory := &fakeFactory{}
	files := cachefile.NewRegistry(t.TempDir())
	pool, err := NewPool(factory, files, 1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	orderA, _ := domain.NewOrder("debian/pool/a.deb")
	orderB, _ := domain.NewOrder("debian/pool/b.deb")

	chA, err := pool.Checkout(testProvider("mirror-a"), orderA)
	if err != nil {
		t.Fatalf("Checkout A: %v", err)
	}
	pool.Return(chA)

	chB, err := pool.Checkout(testProvider("mirror-b"), orderB)
	if err != nil {
		t.Fatalf("Checkout B: %v", err)
	}
	pool.Return(chB)

	// Capacity is 1: returning chB should have evicted chA's idle slot.
	chA2, err := pool.Checkout(testProvider("mirror-a"), orderA)
	if err != nil {
		t.Fatalf("Checkout A again: %v", err)
	}
	if chA2 == chA {
		t.Error("expected the original mirror-a channel to have been evicted at capacity 1")
	}
}
