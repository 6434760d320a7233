package httpapi

import (
	"errors"
	"net/http"

	"chatstream/internal/sse"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusOf maps an error to its HTTP status, defaulting to 500.
func statusOf(err error) int {
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeSSEError answers a request that never opened a stream with a single
// `event: error` frame.
func writeSSEError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write(sse.Encode(sse.Error(msg)))
}
