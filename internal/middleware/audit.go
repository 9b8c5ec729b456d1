package middleware

import (
	"net/http"

	logpkg "github.com/benvon/eisenhower-todo/internal/logger"
	"github.com/benvon/eisenhower-todo/internal/request"
	"go.uber.org/zap"
)

// Audit logs rejected requests: failed authentication, denied access and rate limiting
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			var event string
			switch rec.status {
			case http.StatusUnauthorized, http.StatusForbidden:
				event = "security_event"
			case http.StatusTooManyRequests:
				event = "rate_limit_violation"
			default:
				return
			}

			fields := []zap.Field{
				zap.Int("status_code", rec.status),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
			}
			if p, ok := request.PrincipalFromContext(r); ok {
				fields = append(fields, zap.String("user_id", logpkg.SanitizeUserID(p.ID.String())))
			}
			logger.Warn(event, fields...)
		})
	}
}
