package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// OpenAPIHandler serves the API description as YAML and as JSON
type OpenAPIHandler struct {
	yamlDoc []byte
	jsonDoc any
}

// NewOpenAPIHandler parses the YAML document once so a malformed file fails at startup
func NewOpenAPIHandler(doc []byte) (*OpenAPIHandler, error) {
	var parsed map[string]any
	if err := yaml.Unmarshal(doc, &parsed); err != nil {
		return nil, err
	}
	return &OpenAPIHandler{yamlDoc: doc, jsonDoc: parsed}, nil
}

// RegisterRoutes registers OpenAPI routes
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/openapi.yaml", h.ServeYAML).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods(http.MethodGet)
}

// ServeYAML serves the document as written
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.yamlDoc)
}

// ServeJSON serves the document converted to JSON
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	writeRawJSON(w, http.StatusOK, h.jsonDoc)
}
