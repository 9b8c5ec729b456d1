package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/benvon/eisenhower-todo/internal/services/tasks"
)

// TaskHandler exposes the task service over HTTP
type TaskHandler struct {
	svc *tasks.Service
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(svc *tasks.Service) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// RegisterRoutes registers task routes on a router that already has the /tasks prefix.
// Fixed paths are registered before /{id} so they are not taken as ids.
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods(http.MethodGet)
	r.HandleFunc("", h.CreateTask).Methods(http.MethodPost)
	r.HandleFunc("/quadrant/{quadrant}", h.ListByQuadrant).Methods(http.MethodGet)
	r.HandleFunc("/status/{status}", h.ListByStatus).Methods(http.MethodGet)
	r.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc("/today", h.DueToday).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.GetTask).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.UpdateTask).Methods(http.MethodPut)
	r.HandleFunc("/{id}", h.DeleteTask).Methods(http.MethodDelete)
	r.HandleFunc("/{id}/complete", h.CompleteTask).Methods(http.MethodPatch)
}

// DeleteTaskResponse confirms a deletion
type DeleteTaskResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
	Title   string `json:"title"`
}

// CreateTask creates a task owned by the caller
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var in tasks.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	task, err := h.svc.Create(r.Context(), p, in)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// ListTasks lists every task visible to the caller
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	list, err := h.svc.List(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// GetTask returns one task
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.svc.Get(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// ListByQuadrant lists visible tasks currently in one quadrant
func (h *TaskHandler) ListByQuadrant(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	list, err := h.svc.ListByQuadrant(r.Context(), p, mux.Vars(r)["quadrant"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// ListByStatus lists visible tasks that are completed or pending
func (h *TaskHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	list, err := h.svc.ListByStatus(r.Context(), p, mux.Vars(r)["status"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// Search matches ?q= against titles and descriptions
func (h *TaskHandler) Search(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	list, err := h.svc.Search(r.Context(), p, r.URL.Query().Get("q"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// DueToday lists pending tasks whose deadline falls on the current UTC day
func (h *TaskHandler) DueToday(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	list, err := h.svc.ListDueToday(r.Context(), p)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// UpdateTask applies a partial update. Absent fields are left alone and an
// explicit null clears description or deadline.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var patch tasks.TaskPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	task, err := h.svc.Update(r.Context(), p, id, patch)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// CompleteTask marks a task completed
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	task, err := h.svc.Complete(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask removes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	deleted, err := h.svc.Delete(r.Context(), p, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, DeleteTaskResponse{
		Message: "Task deleted successfully",
		ID:      deleted.ID,
		Title:   deleted.Title,
	})
}
