package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrorResponse is the error envelope shared with the handlers
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func newErrorResponse(status int, message string) ErrorResponse {
	return ErrorResponse{
		Success:   false,
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler creates error handling middleware
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					// details stay in the log
					logger.Error("panic_recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)
					writeError(w, http.StatusInternalServerError, "An unexpected error occurred", logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// writeError sends the error envelope with the status text as error type
func writeError(w http.ResponseWriter, status int, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(newErrorResponse(status, message)); err != nil && logger != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
		)
	}
}
