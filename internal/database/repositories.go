package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/benvon/eisenhower-todo/internal/models"
)

// UserRepositoryInterface is what authentication needs from user storage
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
}

// ReclassifyRepositoryInterface is what the reclassification worker needs
type ReclassifyRepositoryInterface interface {
	List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	UpdateQuadrant(ctx context.Context, id int64, quadrant models.Quadrant) error
	ListOwnersWithPendingDeadlines(ctx context.Context) ([]uuid.UUID, error)
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface       = (*UserRepository)(nil)
	_ ReclassifyRepositoryInterface = (*TaskRepository)(nil)
)
