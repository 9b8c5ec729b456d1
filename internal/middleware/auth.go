package middleware

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/request"
	"github.com/benvon/eisenhower-todo/internal/services/oidc"
)

// TokenVerifier turns a bearer token into identity claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

// Auth creates authentication middleware that validates bearer JWTs and
// attaches the matching user, created on first sight, to the request.
func Auth(users database.UserRepositoryInterface, verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "Missing or malformed Authorization header", logger)
				return
			}

			ctx := r.Context()
			claims, err := verifier.Verify(ctx, token)
			if err != nil {
				if errors.Is(err, oidc.ErrInvalidToken) {
					logger.Debug("token_rejected", zap.Error(err))
					writeError(w, http.StatusUnauthorized, "Invalid or expired token", logger)
					return
				}
				logger.Error("token_verification_failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "Failed to verify token", logger)
				return
			}

			user, err := resolveUser(ctx, users, claims, logger)
			if err != nil {
				logger.Error("failed_to_resolve_user", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "Failed to load user", logger)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// resolveUser returns the user for claims.Sub, creating it with the user role
// when missing and refreshing email and name when they changed.
func resolveUser(ctx context.Context, users database.UserRepositoryInterface, claims *models.JWTClaims, logger *zap.Logger) (*models.User, error) {
	user, err := users.GetByProviderID(ctx, claims.Sub)
	if errors.Is(err, sql.ErrNoRows) {
		sub := claims.Sub
		user = &models.User{
			ID:            uuid.New(),
			Email:         claims.Email,
			ProviderID:    &sub,
			Name:          optionalString(claims.Name),
			Role:          models.RoleUser,
			EmailVerified: true,
		}
		if err := users.Create(ctx, user); err != nil {
			// a concurrent first request may have created it
			existing, getErr := users.GetByProviderID(ctx, claims.Sub)
			if getErr != nil {
				return nil, fmt.Errorf("failed to create user: %w", err)
			}
			return existing, nil
		}
		logger.Info("user_created", zap.String("user_id", user.ID.String()))
		return user, nil
	}
	if err != nil {
		return nil, err
	}

	changed := false
	if claims.Email != "" && user.Email != claims.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.Name != "" && (user.Name == nil || *user.Name != claims.Name) {
		user.Name = optionalString(claims.Name)
		changed = true
	}
	if changed {
		if err := users.UpdateProfile(ctx, user); err != nil {
			// stale profile data is not worth failing the request
			logger.Warn("failed_to_update_user_profile",
				zap.String("user_id", user.ID.String()),
				zap.Error(err),
			)
		}
	}

	return user, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
