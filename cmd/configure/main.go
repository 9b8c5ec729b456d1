package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/benvon/eisenhower-todo/cmd/configure/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "eisenhower-configure",
		Short:        "Configuration tool for the Eisenhower Task API",
		Long:         "CLI tool for OIDC providers, CORS, rate limits, user roles and schema migrations",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(commands.NewOIDCCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewUserCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
