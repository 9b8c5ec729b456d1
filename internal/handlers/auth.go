package handlers

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/request"
	"github.com/benvon/eisenhower-todo/internal/services/oidc"
)

// LoginConfigProvider builds the login configuration of a provider
type LoginConfigProvider interface {
	GetLoginConfig(ctx context.Context, providerName, state string) (*oidc.LoginConfig, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	provider     LoginConfigProvider
	providerName string
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler for the named provider
func NewAuthHandler(provider LoginConfigProvider, providerName string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{provider: provider, providerName: providerName, logger: logger}
}

// RegisterLoginRoutes registers public routes on a router with the /auth/oidc prefix
func (h *AuthHandler) RegisterLoginRoutes(r *mux.Router) {
	r.HandleFunc("/login", h.GetOIDCLogin).Methods(http.MethodGet)
}

// RegisterRoutes registers authenticated routes on a router with the /auth prefix
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods(http.MethodGet)
}

// GetOIDCLogin returns what the frontend needs to start a login, including a fresh state value
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	state, err := newState()
	if err != nil {
		h.logger.Error("failed_to_generate_oidc_state", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to start login")
		return
	}

	loginConfig, err := h.provider.GetLoginConfig(r.Context(), h.providerName, state)
	if errors.Is(err, sql.ErrNoRows) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "OIDC provider is not configured")
		return
	}
	if err != nil {
		h.logger.Error("failed_to_get_oidc_login_config",
			zap.String("provider", h.providerName),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get OIDC configuration")
		return
	}

	respondJSON(w, http.StatusOK, loginConfig)
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := request.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func newState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
