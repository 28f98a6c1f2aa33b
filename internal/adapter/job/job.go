// Package job implements a single attempt to satisfy one
// order against one provider over one channel.
package job

import (
	"net/url"
	"strings"
	"time"

	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
)

// Job is ephemeral: built,
// executed once, and discarded.
type Job struct {
	order    domain.Order
	provider domain.Provider
	channel  ports.Channel
	uri      string

	lowSpeedFloorBytesPerSec int64
	lowSpeedWindow           time.Duration
}

// New builds a Job for order against provider over channel, joining the
// provider's base URI with the order path. A malformed join surfaces as
// domain.BadOrderError rather than panicking.
func New(order domain.Order, provider domain.Provider, channel ports.Channel, lowSpeedFloorBytesPerSec int64, lowSpeedWindow time.Duration) (*Job, error) {
	uri, err := joinProviderPath(provider.BaseURI, order.Path)
	if err != nil {
		return nil, &domain.BadOrderError{Path: order.Path, Reason: err.Error()}
	}

	return &Job{
		order:                    order,
		provider:                 provider,
		channel:                  channel,
		uri:                      uri,
		lowSpeedFloorBytesPerSec: lowSpeedFloorBytesPerSec,
		lowSpeedWindow:           lowSpeedWindow,
	}, nil
}

// joinProviderPath resolves orderPath against baseURI the way a browser
// resolves a relative link: baseURI's path is treated as a directory
// (trailing slash forced) so the order path is appended rather than
// replacing it.
func joinProviderPath(baseURI, orderPath string) (string, error) {
	base, err := url.Parse(baseURI)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimPrefix(orderPath, "/"))
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String(), nil
}

// Execute runs the job to completion: configure the
// channel's transfer handle, perform the transfer into the cache file,
// and classify the outcome into exactly one JobResult variant.
func (j *Job) Execute() domain.JobResult {
	startOffset, resuming := j.channel.ProgressOffset()

	handle := j.channel.Handle()
	handle.SetURL(j.uri)
	handle.SetFollowRedirects(true)
	if j.lowSpeedFloorBytesPerSec > 0 && j.lowSpeedWindow > 0 {
		handle.SetLowSpeedFloor(j.lowSpeedFloorBytesPerSec, j.lowSpeedWindow)
	}
	if resuming {
		handle.SetResumeFrom(startOffset)
	}

	sink := &resumeAwareSink{
		inner:           j.channel.CacheFile(),
		handle:          handle,
		requestedOffset: startOffset,
		resuming:        resuming,
	}

	performErr := handle.Perform(sink)
	code := handle.ResponseCode()

	if performErr == nil {
		if code >= 200 && code < 300 {
			return domain.CompleteResult(j.provider)
		}
		// Non-2xx after a clean transfer: the response body (an error page,
		// typically) is not a valid prefix of the object. Always rewind to
		// the last known-good size.
		_ = j.channel.CacheFile().Rewind(startOffset)
		return domain.ErrorResult(j.provider, domain.NewHTTPFailureStatusError(j.provider.Name, j.uri, code))
	}

	size := j.channel.CacheFile().SizeWritten()
	if size > startOffset {
		return domain.PartialResult(j.provider, size)
	}
	return domain.ErrorResult(j.provider, domain.NewTransportError(j.provider.Name, j.uri, performErr))
}

// resumeAwareSink wraps the channel's cache file to implement the other
// half of the rewind rule: if a resume was requested but the upstream
// answered 200 (a full body) instead of 206, the cache file is rewound to
// zero before the first byte of this response is written, so the full
// body isn't appended after the stale partial prefix.
type resumeAwareSink struct {
	inner           ports.CacheFile
	handle          ports.TransferHandle
	requestedOffset int64
	resuming        bool
	checked         bool
}

func (s *resumeAwareSink) Write(p []byte) (int, error) {
	if !s.checked {
		s.checked = true
		if s.resuming && s.handle.ResponseCode() == 200 {
			if err := s.inner.Rewind(0); err != nil {
				return 0, err
			}
		}
	}
	return s.inner.Write(p)
}
