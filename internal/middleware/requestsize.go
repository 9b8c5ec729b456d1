package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize caps request bodies at 64KiB. A task is at most a few hundred runes.
const DefaultMaxRequestSize int64 = 64 << 10

// MaxRequestSize limits the size of request bodies
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
