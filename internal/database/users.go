package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/eisenhower-todo/internal/models"
)

const userColumns = `id, email, provider_id, name, role, email_verified, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user. An empty role defaults to "user".
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if !user.Role.Valid() {
		user.Role = models.RoleUser
	}

	query := `
		INSERT INTO users (id, email, provider_id, name, role, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Email,
		user.ProviderID,
		user.Name,
		user.Role,
		user.EmailVerified,
		now,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getBy(ctx, "email", email)
}

// GetByProviderID retrieves a user by the subject claim of their identity provider
func (r *UserRepository) GetByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	return r.getBy(ctx, "provider_id", providerID)
}

// column is always one of the literals above, never user input
func (r *UserRepository) getBy(ctx context.Context, column string, value any) (*models.User, error) {
	user := &models.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	err := r.db.GetContext(ctx, user, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", column, err)
	}

	return user, nil
}

// UpdateProfile refreshes the identity fields copied from token claims
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, email_verified = $4, updated_at = $5
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.EmailVerified,
		time.Now().UTC(),
	).Scan(&user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

// SetRole changes the role of the user with the given email
func (r *UserRepository) SetRole(ctx context.Context, email string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	user := &models.User{}
	query := `
		UPDATE users
		SET role = $2, updated_at = $3
		WHERE email = $1
		RETURNING ` + userColumns

	err := r.db.GetContext(ctx, user, query, email, role, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s not found: %w", email, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set user role: %w", err)
	}

	return user, nil
}
