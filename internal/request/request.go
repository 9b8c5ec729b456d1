// Package request holds per-request values shared by middleware and handlers.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/benvon/eisenhower-todo/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// UserContextKey returns the context key used for the user. Exposed for tests that inject non-user values.
func UserContextKey() contextKey { return userContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
// The port of RemoteAddr is dropped so that one host maps to one rate limit key.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithUser returns a context with the authenticated user attached.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the user from the request context, or nil if missing or wrong type.
func UserFromContext(r *http.Request) *models.User {
	u, _ := r.Context().Value(userContextKey).(*models.User)
	return u
}

// PrincipalFromContext returns the acting principal of an authenticated request.
func PrincipalFromContext(r *http.Request) (models.Principal, bool) {
	u := UserFromContext(r)
	if u == nil {
		return models.Principal{}, false
	}
	return u.Principal(), true
}
