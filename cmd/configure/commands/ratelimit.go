package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"

	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/models"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long:  "List or update the per-client rate (e.g. 10-S, 100-M). The API reloads it every minute.",
	}
	cmd.AddCommand(newRatelimitListCmd())
	cmd.AddCommand(newRatelimitSetCmd())
	return cmd
}

func newRatelimitListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current rate limit configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *database.DB) error {
				c, err := database.NewRatelimitConfigRepository(db).Get(ctx)
				if err != nil {
					return fmt.Errorf("get ratelimit config: %w", err)
				}
				if c == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No rate limit configuration in database. Use 'ratelimit set' to add one.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rate: %s\n", c.Rate)
				return nil
			})
		},
	}
}

// parseRate accepts the limiter's formatted rates, e.g. 10-S or 1000-H
func parseRate(raw string) (string, error) {
	rate := strings.ToUpper(strings.TrimSpace(raw))
	if rate == "" {
		return "", fmt.Errorf("--rate is required (e.g. 10-S, 100-M)")
	}
	if _, err := limiter.NewRateFromFormatted(rate); err != nil {
		return "", fmt.Errorf("invalid rate %q: %w", raw, err)
	}
	return rate, nil
}

func newRatelimitSetCmd() *cobra.Command {
	var rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set rate limit configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseRate(rate)
			if err != nil {
				return err
			}
			return withDB(cmd, func(ctx context.Context, db *database.DB) error {
				if err := database.NewRatelimitConfigRepository(db).Set(ctx, &models.RatelimitConfig{Rate: parsed}); err != nil {
					return fmt.Errorf("set ratelimit config: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rate limit configuration updated.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rate, "rate", "", "Rate (e.g. 10-S, 100-M, 1000-H) (required)")
	return cmd
}
