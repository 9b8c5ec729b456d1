package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/models"
)

// NewCorsCmd creates the cors configuration command with list and set subcommands.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins. The API reloads them every minute.",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *database.DB) error {
				c, err := database.NewCorsConfigRepository(db).Get(ctx)
				if err != nil {
					return fmt.Errorf("get cors config: %w", err)
				}
				if c == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No CORS configuration in database. Use 'cors set' to add one.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration:")
				for _, origin := range database.AllowedOriginsSlice(c.AllowedOrigins) {
					fmt.Fprintf(cmd.OutOrStdout(), "  Origin: %s\n", origin)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  Allow credentials: %v\n", c.AllowCredentials)
				fmt.Fprintf(cmd.OutOrStdout(), "  Max-Age: %d\n", c.MaxAge)
				return nil
			})
		},
	}
}

// parseOrigins rejects empty lists and origins without a scheme
func parseOrigins(raw string) ([]string, error) {
	origins := database.AllowedOriginsSlice(raw)
	if len(origins) == 0 {
		return nil, fmt.Errorf("--origins is required (comma-separated list)")
	}
	for _, o := range origins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return nil, fmt.Errorf("origin %q must start with http:// or https://", o)
		}
	}
	return origins, nil
}

func newCorsSetCmd() *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := parseOrigins(origins)
			if err != nil {
				return err
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age must not be negative")
			}
			return withDB(cmd, func(ctx context.Context, db *database.DB) error {
				c := &models.CorsConfig{
					AllowedOrigins:   strings.Join(list, ","),
					AllowCredentials: allowCreds,
					MaxAge:           maxAge,
				}
				if err := database.NewCorsConfigRepository(db).Set(ctx, c); err != nil {
					return fmt.Errorf("set cors config: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	return cmd
}
