package transport

import (
	"net"
	"net/http"
	"time"

	"github.com/arcmirror/arcproxy/internal/core/constants"
	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
)

// HTTPHandleFactory builds HTTPHandle instances sharing one tuned
// http.Transport, so connection pooling (keep-alive) happens at the
// net/http layer exactly once regardless of how many channels the pool
// creates for a given provider.
type HTTPHandleFactory struct {
	client *http.Client
}

// NewHTTPHandleFactory builds a factory with sane connection-pooling
// defaults for a mirror-proxy workload: long idle timeouts, generous
// per-host connection limits.
func NewHTTPHandleFactory() *HTTPHandleFactory {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: constants.DefaultConnectTimeout,
		DialContext: (&net.Dialer{
			Timeout:   constants.DefaultConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &HTTPHandleFactory{client: &http.Client{Transport: transport}}
}

// New builds a handle bound to provider. The returned handle's client is
// shared across every handle the factory builds, so a provider's TCP
// connections are pooled across channels, not just within one.
func (f *HTTPHandleFactory) New(_ domain.Provider) ports.TransferHandle {
	return NewHTTPHandle(f.client)
}
