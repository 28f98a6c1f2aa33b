package domain

import (
	"fmt"
)

// TransportError wraps an opaque transport failure: connection refused,
// reset, timeout, low-speed abort, TLS failure. Retryable; the scheduler
// moves to the next provider, preserving progress.
type TransportError struct {
	Err      error
	Provider string
	URL      string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure against %s (%s): %v", e.Provider, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPFailureStatusError is a response code outside [200, 300). Retryable,
// but progress is discarded: the response body is not guaranteed to be a
// valid prefix of the object.
type HTTPFailureStatusError struct {
	Provider   string
	URL        string
	StatusCode int
}

func (e *HTTPFailureStatusError) Error() string {
	return fmt.Sprintf("provider %s returned HTTP %d for %s", e.Provider, e.StatusCode, e.URL)
}

// BadOrderError replaces a panic on malformed provider/order URL joins, or
// on unsafe order paths supplied by a front-end.
type BadOrderError struct {
	Path   string
	Reason string
}

func (e *BadOrderError) Error() string {
	return fmt.Sprintf("bad order %q: %s", e.Path, e.Reason)
}

// ProvidersExhaustedError is terminal: every ranked provider has been tried
// for this order and none completed it.
type ProvidersExhaustedError struct {
	Order   Order
	Tried   int
	LastErr error
}

func (e *ProvidersExhaustedError) Error() string {
	return fmt.Sprintf("order %s: all %d providers exhausted: %v", e.Order, e.Tried, e.LastErr)
}

func (e *ProvidersExhaustedError) Unwrap() error {
	return e.LastErr
}

// SinkError is a local disk-write failure reported back through the
// transfer handle as a transport abort. The job classifies it like any
// other transport failure (Partial if bytes landed, otherwise Error) and
// the scheduler moves on to the next untried provider; there is no
// sink-specific retry limit, so the order fails only once every provider
// has been tried.
type SinkError struct {
	Err  error
	Path string
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("cache sink write failed for %s: %v", e.Path, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

func NewTransportError(provider, url string, err error) *TransportError {
	return &TransportError{Provider: provider, URL: url, Err: err}
}

func NewHTTPFailureStatusError(provider, url string, statusCode int) *HTTPFailureStatusError {
	return &HTTPFailureStatusError{Provider: provider, URL: url, StatusCode: statusCode}
}
