package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/arcmirror/arcproxy/internal/core/domain"
	"github.com/arcmirror/arcproxy/internal/core/ports"
	"github.com/arcmirror/arcproxy/internal/logger"
	"github.com/arcmirror/arcproxy/internal/util"
)

const contentTypeJSON = "application/json"

// fetchHandler parses the requested path into an Order, schedules it
// against the engine, and streams the cache file to the client as it
// grows, without waiting for the whole object to land.
func (a *Application) fetchHandler(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)
	w.Header().Set(requestIDHeader, reqID)
	clientIP := util.GetClientIP(r, a.trustProxyHeaders, a.trustedCIDRs)
	log := a.logger.With("request_id", reqID, "client_ip", clientIP)

	requestPath := strings.TrimPrefix(r.URL.Path, a.config.Server.FetchPrefix)

	order, err := domain.NewOrder(requestPath)
	if err != nil {
		log.Warn("rejected order", "path", requestPath, "error", err)
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	handle, err := a.engine.Schedule(r.Context(), order)
	if err != nil {
		a.writeScheduleError(w, log, err)
		return
	}
	defer handle.Release()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	if err := a.streamCacheFile(r.Context(), w, handle); err != nil {
		log.Warn("stream interrupted", "path", requestPath, "error", err)
	}
}

func (a *Application) writeScheduleError(w http.ResponseWriter, log *logger.StyledLogger, err error) {
	var badOrder *domain.BadOrderError
	var exhausted *domain.ProvidersExhaustedError
	switch {
	case errors.As(err, &badOrder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &exhausted):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		log.Error("schedule failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// streamCacheFile copies bytes [0, SizeWritten) to w as the order's job
// advances, waking on progress events rather than polling, and stops at
// EventCompleted or EventFailed.
func (a *Application) streamCacheFile(ctx context.Context, w http.ResponseWriter, handle ports.OrderHandle) error {
	reader, err := handle.CacheFile().NewReader()
	if err != nil {
		return fmt.Errorf("open cache file reader: %w", err)
	}
	defer reader.Close()

	flusher, _ := w.(http.Flusher)
	events := handle.Events(ctx)

	copyAvailable := func() error {
		n, err := io.Copy(w, reader)
		if n > 0 && flusher != nil {
			flusher.Flush()
		}
		return err
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return copyAvailable()
			}
			switch ev.Kind {
			case domain.EventSizeWrittenAdvanced:
				if err := copyAvailable(); err != nil {
					return err
				}
			case domain.EventCompleted:
				if err := copyAvailable(); err != nil {
					return err
				}
				return nil
			case domain.EventFailed:
				_ = copyAvailable()
				return ev.Err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// statsHandler reports engine-wide counters as JSON.
func (a *Application) statsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", contentTypeJSON)
	if err := json.NewEncoder(w).Encode(a.engine.Stats()); err != nil {
		a.logger.Error("failed to encode stats", "error", err)
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Providers int    `json:"providers"`
}

// healthHandler reports liveness and whether the provider registry has
// anything to serve from.
func (a *Application) healthHandler(w http.ResponseWriter, _ *http.Request) {
	providers := a.providers.Snapshot()

	resp := healthResponse{Status: "ok", Providers: len(providers)}
	status := http.StatusOK
	if len(providers) == 0 {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		a.logger.Error("failed to encode health response", "error", err)
	}
}
