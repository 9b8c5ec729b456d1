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

const oidcColumns = `id, provider, issuer, domain, client_id, client_secret, redirect_uri, jwks_url, created_at, updated_at`

// OIDCConfigRepository handles OIDC configuration database operations
type OIDCConfigRepository struct {
	db *DB
}

// NewOIDCConfigRepository creates a new OIDC config repository
func NewOIDCConfigRepository(db *DB) *OIDCConfigRepository {
	return &OIDCConfigRepository{db: db}
}

// Upsert creates or replaces the configuration of config.Provider
func (r *OIDCConfigRepository) Upsert(ctx context.Context, config *models.OIDCConfig) (created bool, err error) {
	if config.ID == uuid.Nil {
		config.ID = uuid.New()
	}
	query := `
		INSERT INTO oidc_config (id, provider, issuer, domain, client_id, client_secret, redirect_uri, jwks_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (provider) DO UPDATE SET
			issuer = EXCLUDED.issuer,
			domain = EXCLUDED.domain,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			redirect_uri = EXCLUDED.redirect_uri,
			jwks_url = EXCLUDED.jwks_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted
	`

	err = r.db.QueryRowxContext(ctx, query,
		config.ID,
		config.Provider,
		config.Issuer,
		config.Domain,
		config.ClientID,
		config.ClientSecret,
		config.RedirectURI,
		config.JWKSUrl,
		time.Now().UTC(),
	).Scan(&config.ID, &config.CreatedAt, &config.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("failed to save OIDC config: %w", err)
	}

	return created, nil
}

// GetByProvider retrieves an OIDC configuration by provider name
func (r *OIDCConfigRepository) GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error) {
	config := &models.OIDCConfig{}
	query := `SELECT ` + oidcColumns + ` FROM oidc_config WHERE provider = $1`

	err := r.db.GetContext(ctx, config, query, provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("OIDC config not found for provider %s: %w", provider, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}

	return config, nil
}

// GetAll retrieves all OIDC configurations ordered by provider
func (r *OIDCConfigRepository) GetAll(ctx context.Context) ([]*models.OIDCConfig, error) {
	var configs []*models.OIDCConfig
	query := `SELECT ` + oidcColumns + ` FROM oidc_config ORDER BY provider`

	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("failed to list OIDC configs: %w", err)
	}

	return configs, nil
}
