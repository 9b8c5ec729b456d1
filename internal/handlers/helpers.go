package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/request"
	"github.com/benvon/eisenhower-todo/internal/services/tasks"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// headers are already sent, nothing useful is left to do on failure
	_ = json.NewEncoder(w).Encode(response)
}

// maxErrorMessageLength truncates messages that echo user input
const maxErrorMessageLength = 200

// respondJSONError sends an error JSON response
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if utf8.RuneCountInString(message) > maxErrorMessageLength {
		message = string([]rune(message)[:maxErrorMessageLength]) + "..."
	}

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondServiceError maps a task service error onto the error envelope.
// Internal details never reach the client.
func respondServiceError(w http.ResponseWriter, err error) {
	status := tasks.StatusCode(err)
	respondJSONError(w, status, http.StatusText(status), tasks.Message(err))
}

// principal returns the authenticated principal or answers 401
func principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := request.PrincipalFromContext(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
	}
	return p, ok
}

// taskID parses the {id} path variable or answers 400
func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Task id must be an integer")
		return 0, false
	}
	return id, true
}

// decodeJSON reads a single JSON document from the body into dst or answers 400/413
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)

	err := dec.Decode(dst)
	if err == nil && dec.More() {
		err = errors.New("trailing data after JSON body")
	}
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
			fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
	case errors.Is(err, io.EOF):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Request body is required")
	default:
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
	}
	return false
}
