package middleware

import (
	"context"

	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/request"
)

// SetUserInContext attaches user the way Auth does. Handler tests use it to
// act as an authenticated principal without a token.
func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return request.WithUser(ctx, user)
}
