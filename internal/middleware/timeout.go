package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds every handler
const DefaultRequestTimeout = 30 * time.Second

// Timeout cancels the request context after timeout and answers 503 with the error envelope
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := json.Marshal(newErrorResponse(http.StatusServiceUnavailable, "Request timed out"))
			// handlers always set their own Content-Type; this one is kept for the timeout body
			w.Header().Set("Content-Type", "application/json")
			http.TimeoutHandler(next, timeout, string(body)).ServeHTTP(w, r)
		})
	}
}
