package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/logger"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			zapLogger, err := logger.NewDevelopmentLogger(false)
			if err != nil {
				zapLogger = zap.NewNop()
			}
			defer func() { _ = logger.Sync(zapLogger) }()

			return withDB(cmd, func(_ context.Context, db *database.DB) error {
				if err := database.Migrate(db, zapLogger); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date.")
				return nil
			})
		},
	})
	return cmd
}
