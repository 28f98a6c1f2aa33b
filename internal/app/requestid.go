package app

import (
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// requestID returns the caller-supplied X-Request-Id if present and
// well-formed, or mints a fresh one, so every fetch can be correlated
// across the access log and the response header.
func requestID(r *http.Request) string {
	if existing := r.Header.Get(requestIDHeader); existing != "" {
		if id, err := uuid.Parse(existing); err == nil {
			return id.String()
		}
	}
	return uuid.New().String()
}
