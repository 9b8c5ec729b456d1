package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// HealthChecker handles health check requests
type HealthChecker struct {
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthChecker creates a health checker over named dependency probes
func NewHealthChecker(checks map[string]CheckFunc, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{checks: checks, timeout: 5 * time.Second, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles /healthz. Basic mode only reports that the process
// serves requests; ?mode=extended probes every dependency and answers 503
// when one is down.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if r.URL.Query().Get("mode") != "extended" {
		writeRawJSON(w, http.StatusOK, response)
		return
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	response.Checks = make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health_check_failed", zap.String("check", name), zap.Error(err))
			response.Status = "unhealthy"
			response.Checks[name] = "unhealthy"
			continue
		}
		response.Checks[name] = "healthy"
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeRawJSON(w, status, response)
}
