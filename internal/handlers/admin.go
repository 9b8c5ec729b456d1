package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/benvon/eisenhower-todo/internal/services/tasks"
)

// AdminHandler serves admin-only views
type AdminHandler struct {
	svc *tasks.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(svc *tasks.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// RegisterRoutes registers admin routes on a router with the /admin prefix
func (h *AdminHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
}

// ListUsers lists every user with their task count. The service enforces the admin role.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	users, err := h.svc.UserTaskCounts(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, users)
}
