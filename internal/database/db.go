package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PoolConfig sizes the connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig is used when no pool settings are supplied
var DefaultPoolConfig = PoolConfig{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
}

// DB wraps a sqlx handle on PostgreSQL. Repositories receive a *DB.
type DB struct {
	*sqlx.DB
}

// New opens a PostgreSQL connection pool and verifies it with a ping
func New(databaseURL string, pool ...PoolConfig) (*DB, error) {
	cfg := DefaultPoolConfig
	if len(pool) > 0 {
		cfg = pool[0]
	}

	conn, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: conn}, nil
}

// HealthCheck pings the database
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}
