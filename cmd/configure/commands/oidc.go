package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/benvon/eisenhower-todo/internal/database"
	"github.com/benvon/eisenhower-todo/internal/models"
	"github.com/benvon/eisenhower-todo/internal/services/oidc"
)

// NewOIDCCmd creates the oidc command with set, list and test subcommands
func NewOIDCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oidc",
		Short: "Manage OIDC providers",
		Long:  "Create, list and test the OIDC providers used to authenticate API callers.",
	}
	cmd.AddCommand(newOIDCSetCmd())
	cmd.AddCommand(newOIDCListCmd())
	cmd.AddCommand(newOIDCTestCmd())
	return cmd
}

// oidcFlags are the inputs of "oidc set"
type oidcFlags struct {
	issuer       string
	domain       string
	clientID     string
	clientSecret string
	redirectURI  string
	jwksURL      string
}

// buildOIDCConfig validates flags and assembles the stored configuration
func buildOIDCConfig(provider string, f oidcFlags) (*models.OIDCConfig, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}
	if f.issuer == "" || f.clientID == "" || f.redirectURI == "" {
		return nil, fmt.Errorf("required flags: --issuer, --client-id, --redirect-uri (--client-secret is optional for public clients)")
	}

	cfg := &models.OIDCConfig{
		ID:          uuid.New(),
		Provider:    provider,
		Issuer:      strings.TrimSuffix(f.issuer, "/"),
		ClientID:    f.clientID,
		RedirectURI: f.redirectURI,
	}
	if f.domain != "" {
		cfg.Domain = &f.domain
	}
	if f.clientSecret != "" {
		cfg.ClientSecret = &f.clientSecret
	}
	if f.jwksURL != "" {
		cfg.JWKSUrl = &f.jwksURL
	}
	return cfg, nil
}

func newOIDCSetCmd() *cobra.Command {
	var f oidcFlags
	cmd := &cobra.Command{
		Use:   "set <provider-name>",
		Short: "Create or update an OIDC provider",
		Long:  "Provider name can be any identifier (e.g. 'cognito', 'okta', 'auth0'). Without --jwks-url the key set is found through discovery.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildOIDCConfig(args[0], f)
			if err != nil {
				return err
			}
			return withDB(cmd, func(ctx context.Context, db *database.DB) error {
				created, err := database.NewOIDCConfigRepository(db).Upsert(ctx, cfg)
				if err != nil {
					return fmt.Errorf("save OIDC config: %w", err)
				}
				verb := "Updated"
				if created {
					verb = "Created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s OIDC configuration for provider: %s\n", verb, cfg.Provider)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.issuer, "issuer", "", "OIDC issuer URL (required)")
	cmd.Flags().StringVar(&f.domain, "domain", "", "Hosted login domain when it differs from the issuer")
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "OAuth2 client secret (optional for public clients)")
	cmd.Flags().StringVar(&f.redirectURI, "redirect-uri", "", "OAuth2 redirect URI (required)")
	cmd.Flags().StringVar(&f.jwksURL, "jwks-url", "", "JWKS URL override")
	return cmd
}

func newOIDCListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured OIDC providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *database.DB) error {
				configs, err := database.NewOIDCConfigRepository(db).GetAll(ctx)
				if err != nil {
					return fmt.Errorf("list OIDC configs: %w", err)
				}
				if len(configs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No OIDC providers configured")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Configured OIDC providers:")
				for _, c := range configs {
					fmt.Fprintf(cmd.OutOrStdout(), "  - Provider: %s\n", c.Provider)
					fmt.Fprintf(cmd.OutOrStdout(), "    Issuer: %s\n", c.Issuer)
					fmt.Fprintf(cmd.OutOrStdout(), "    Client ID: %s\n", c.ClientID)
					fmt.Fprintf(cmd.OutOrStdout(), "    Redirect URI: %s\n", c.RedirectURI)
					if c.JWKSUrl != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "    JWKS URL: %s\n", *c.JWKSUrl)
					}
				}
				return nil
			})
		},
	}
}

func newOIDCTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <provider-name>",
		Short: "Resolve a provider's endpoints and fetch its key set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(ctx context.Context, db *database.DB) error {
				provider := oidc.NewProvider(database.NewOIDCConfigRepository(db))
				cfg, err := provider.GetConfig(ctx, args[0])
				if err != nil {
					return fmt.Errorf("get OIDC config: %w", err)
				}

				endpoints := provider.Endpoints(ctx, cfg)
				fmt.Fprintf(cmd.OutOrStdout(), "Provider: %s\n", cfg.Provider)
				fmt.Fprintf(cmd.OutOrStdout(), "Authorization endpoint: %s\n", endpoints.Authorization)
				fmt.Fprintf(cmd.OutOrStdout(), "Token endpoint: %s\n", endpoints.Token)
				fmt.Fprintf(cmd.OutOrStdout(), "JWKS: %s\n", endpoints.JWKS)

				set, err := oidc.NewJWKSManager().GetJWKS(ctx, endpoints.JWKS)
				if err != nil {
					return fmt.Errorf("fetch JWKS: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK: key set holds %d key(s)\n", set.Len())
				return nil
			})
		},
	}
}
