package middleware

import (
	"bufio"
	"mime"
	"net/http"
)

// ContentType requires a JSON Content-Type on requests that carry a body
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
		default:
			next.ServeHTTP(w, r)
			return
		}

		// PATCH /complete has no body
		if r.Header.Get("Content-Type") == "" && !hasBody(r) {
			next.ServeHTTP(w, r)
			return
		}

		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Content-Type header is required", nil)
			return
		}
		if mediaType != "application/json" {
			writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// hasBody reports whether r carries at least one body byte. Bodies of
// unknown length are peeked; the caller rejects them when they are not empty.
func hasBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return false
	}
	if r.ContentLength > 0 {
		return true
	}
	_, err := bufio.NewReader(r.Body).Peek(1)
	return err == nil
}
