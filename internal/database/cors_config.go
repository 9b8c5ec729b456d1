package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/eisenhower-todo/internal/models"
)

const defaultCorsConfigKey = "default"

// CorsConfigRepository handles CORS configuration in the database.
type CorsConfigRepository struct {
	db *DB
}

// NewCorsConfigRepository creates a new CORS config repository.
func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db}
}

// Get retrieves the default CORS config. A missing row is (nil, nil).
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	c := &models.CorsConfig{}
	err := r.db.GetContext(ctx, c, `
		SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		FROM cors_config WHERE config_key = $1
	`, defaultCorsConfigKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cors config: %w", err)
	}
	return c, nil
}

// Set upserts the default CORS config.
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	origins := AllowedOriginsSlice(c.AllowedOrigins)
	if len(origins) == 0 {
		return fmt.Errorf("allowed_origins cannot be empty")
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age cannot be negative")
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at
	`, defaultCorsConfigKey, strings.Join(origins, ","), c.AllowCredentials, c.MaxAge, now)
	if err != nil {
		return fmt.Errorf("set cors config: %w", err)
	}
	return nil
}

// AllowedOriginsSlice splits a comma-separated origin list, trimming blanks
// and dropping duplicates while keeping the first-seen order.
func AllowedOriginsSlice(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
