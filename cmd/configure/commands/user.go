package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/models"
)

// NewUserCmd creates the user command. Users themselves are created on first login.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect users and manage roles",
	}
	cmd.AddCommand(newUserGetCmd())
	cmd.AddCommand(newUserSetRoleCmd())
	return cmd
}

func newUserGetCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show a user by email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}
			return withDB(cmd, func(ctx context.Context, db *database.DB) error {
				u, err := database.NewUserRepository(db).GetByEmail(ctx, email)
				if err != nil {
					return fmt.Errorf("get user: %w", err)
				}
				printUser(cmd, u)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	return cmd
}

// parseRole accepts admin or user in any case
func parseRole(raw string) (models.Role, error) {
	role := models.Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("--role must be %q or %q", models.RoleAdmin, models.RoleUser)
	}
	return role, nil
}

func newUserSetRoleCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "set-role",
		Short: "Grant or revoke the admin role",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			return withDB(cmd, func(ctx context.Context, db *database.DB) error {
				u, err := database.NewUserRepository(db).SetRole(ctx, email, r)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Role updated.")
				printUser(cmd, u)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "User email (required)")
	cmd.Flags().StringVar(&role, "role", "", "admin or user (required)")
	return cmd
}

func printUser(cmd *cobra.Command, u *models.User) {
	fmt.Fprintf(cmd.OutOrStdout(), "  ID: %s\n", u.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "  Email: %s\n", u.Email)
	if u.Name != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "  Name: %s\n", *u.Name)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  Role: %s\n", u.Role)
	fmt.Fprintf(cmd.OutOrStdout(), "  Created: %s\n", u.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
}
