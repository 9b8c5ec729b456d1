package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/eisenhower-todo/internal/config"
	"github.com/benvon/eisenhower-todo/internal/database"
)

const commandTimeout = 30 * time.Second

// withDB loads configuration, opens the database and runs fn against it
func withDB(cmd *cobra.Command, fn func(ctx context.Context, db *database.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL, cfg.PoolConfig())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			cmd.PrintErrf("Warning: failed to close database: %v\n", err)
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	return fn(ctx, db)
}
