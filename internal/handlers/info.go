package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// ServiceInfo describes the running service
type ServiceInfo struct {
	Title       string            `json:"title"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Contact     map[string]string `json:"contact,omitempty"`
	Docs        string            `json:"docs"`
}

// InfoHandler serves / and /version
type InfoHandler struct {
	info ServiceInfo
}

// NewInfoHandler creates a handler for the given build version. baseURL, when
// set, is published as the contact URL.
func NewInfoHandler(version, baseURL string) *InfoHandler {
	info := ServiceInfo{
		Title:       "Eisenhower Task API",
		Version:     version,
		Description: "Task management on the Eisenhower matrix: importance and deadline urgency place each task in a quadrant",
		Docs:        "/api/v1/openapi.json",
	}
	if baseURL != "" {
		info.Contact = map[string]string{"url": baseURL}
	}
	return &InfoHandler{info: info}
}

// Root returns service information
func (h *InfoHandler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.info)
}

// Version returns the build version only
func (h *InfoHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeRawJSON(w, http.StatusOK, map[string]string{
		"version":   h.info.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeRawJSON writes v without the response envelope, for probes and tooling
func writeRawJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
