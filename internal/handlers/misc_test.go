package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/api/openapi"
	"github.com/benvon/eisenhower-todo/internal/middleware"
	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/services/oidc"
)

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		query      string
		checks     map[string]CheckFunc
		wantStatus int
		wantChecks map[string]string
	}{
		{"basic ignores dependencies", "", map[string]CheckFunc{"database": down}, http.StatusOK, nil},
		{"extended healthy", "?mode=extended", map[string]CheckFunc{"database": ok, "redis": ok}, http.StatusOK,
			map[string]string{"database": "healthy", "redis": "healthy"}},
		{"extended degraded", "?mode=extended", map[string]CheckFunc{"database": ok, "redis": down}, http.StatusServiceUnavailable,
			map[string]string{"database": "healthy", "redis": "unhealthy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			NewHealthChecker(tt.checks, zap.NewNop()).HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Fatalf("Expected checks %v, got %v", tt.wantChecks, resp.Checks)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("Check %s = %q, want %q", k, resp.Checks[k], v)
				}
			}
		})
	}
}

func TestInfoHandler(t *testing.T) {
	t.Parallel()

	h := NewInfoHandler("1.2.3", "https://tasks.example.com")

	w := httptest.NewRecorder()
	h.Root(w, httptest.NewRequest(http.MethodGet, "/", nil))
	var env struct {
		Success bool        `json:"success"`
		Data    ServiceInfo `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !env.Success || env.Data.Version != "1.2.3" || env.Data.Title == "" || env.Data.Contact["url"] != "https://tasks.example.com" {
		t.Errorf("Unexpected service info %+v", env)
	}

	w = httptest.NewRecorder()
	h.Version(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	var v map[string]string
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if v["version"] != "1.2.3" {
		t.Errorf("Unexpected version body %v", v)
	}
}

func TestOpenAPIHandler(t *testing.T) {
	t.Parallel()

	h, err := NewOpenAPIHandler(openapi.Document)
	if err != nil {
		t.Fatalf("Embedded document does not parse: %v", err)
	}
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for JSON, got %d: %s", w.Code, w.Body.String())
	}
	var doc map[string]any
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("JSON document does not decode: %v", err)
	}
	paths, _ := doc["paths"].(map[string]any)
	for _, p := range []string{"/tasks", "/tasks/{id}", "/stats/deadlines", "/admin/users"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("Path %s missing from document", p)
		}
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.yaml", nil))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/yaml" {
		t.Errorf("Unexpected YAML response %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	if _, err := NewOpenAPIHandler([]byte("paths: [unclosed")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

type fakeLoginProvider struct {
	err error
}

func (f fakeLoginProvider) GetLoginConfig(_ context.Context, name, state string) (*oidc.LoginConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oidc.LoginConfig{
		Provider:         name,
		AuthorizationURL: "https://auth.example.com/authorize?state=" + url.QueryEscape(state),
		State:            state,
	}, nil
}

func TestAuthHandler_Login(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		provider   fakeLoginProvider
		wantStatus int
	}{
		{"configured", fakeLoginProvider{}, http.StatusOK},
		{"not configured", fakeLoginProvider{err: fmt.Errorf("failed to get OIDC config: %w", sql.ErrNoRows)}, http.StatusNotFound},
		{"store failure", fakeLoginProvider{err: errors.New("db down")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			NewAuthHandler(tt.provider, "cognito", zap.NewNop()).GetOIDCLogin(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/oidc/login", nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var env struct {
				Data oidc.LoginConfig `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if len(env.Data.State) < 32 || env.Data.Provider != "cognito" {
				t.Errorf("Expected a random state and provider, got %+v", env.Data)
			}
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	t.Parallel()

	h := NewAuthHandler(fakeLoginProvider{}, "cognito", zap.NewNop())

	w := httptest.NewRecorder()
	h.GetMe(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without user, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req = req.WithContext(middleware.SetUserInContext(req.Context(), &models.User{Email: "ada@example.com", Role: models.RoleAdmin}))
	w = httptest.NewRecorder()
	h.GetMe(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var env struct {
		Data models.User `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if env.Data.Email != "ada@example.com" || env.Data.Role != models.RoleAdmin {
		t.Errorf("Unexpected user %+v", env.Data)
	}
}

func TestRespondJSONError_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"short message kept", "invalid quadrant \"Q5\"", "invalid quadrant \"Q5\""},
		{"ascii over limit", strings.Repeat("a", 250), strings.Repeat("a", 200) + "..."},
		{"multibyte over limit", "x" + strings.Repeat("ж", 250), "x" + strings.Repeat("ж", 199) + "..."},
		{"multibyte at limit", strings.Repeat("ж", 200), strings.Repeat("ж", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			respondJSONError(w, http.StatusBadRequest, "Bad Request", tt.message)

			if !utf8.Valid(w.Body.Bytes()) {
				t.Fatal("Expected valid UTF-8 body")
			}
			var env struct {
				Message string `json:"message"`
			}
			if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if env.Message != tt.want {
				t.Errorf("Expected message of %d runes, got %d", utf8.RuneCountInString(tt.want), utf8.RuneCountInString(env.Message))
			}
		})
	}
}
