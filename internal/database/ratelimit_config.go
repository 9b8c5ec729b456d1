package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"

	"github.com/benvon/eisenhower-todo/internal/models"
)

const defaultRatelimitConfigKey = "default"

// RatelimitConfigRepository handles rate limit configuration in the database.
type RatelimitConfigRepository struct {
	db *DB
}

// NewRatelimitConfigRepository creates a new ratelimit config repository.
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get retrieves the default rate limit config. A missing row is (nil, nil).
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	c := &models.RatelimitConfig{}
	err := r.db.GetContext(ctx, c, `
		SELECT config_key, rate, created_at, updated_at
		FROM ratelimit_config WHERE config_key = $1
	`, defaultRatelimitConfigKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ratelimit config: %w", err)
	}
	return c, nil
}

// Set upserts the default rate limit config after checking the rate parses.
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	rate := strings.TrimSpace(c.Rate)
	if rate == "" {
		return fmt.Errorf("rate cannot be empty")
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
	`, defaultRatelimitConfigKey, rate, now)
	if err != nil {
		return fmt.Errorf("set ratelimit config: %w", err)
	}
	return nil
}
