package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/benvon/eisenhower-todo/internal/services/tasks"
)

// StatsHandler serves aggregate views over the caller's tasks
type StatsHandler struct {
	svc *tasks.Service
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(svc *tasks.Service) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// RegisterRoutes registers stats routes on a router with the /stats prefix
func (h *StatsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetStats).Methods(http.MethodGet)
	r.HandleFunc("/deadlines", h.GetDeadlines).Methods(http.MethodGet)
}

// GetStats returns counts by quadrant and status
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetDeadlines returns pending tasks with a deadline, soonest first
func (h *StatsHandler) GetDeadlines(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Deadlines(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
