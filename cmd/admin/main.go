package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// adminIdentity is the caller attached to every command run from the CLI.
// The CLI talks to the stores directly, so it acts with full rights.
var adminIdentity = storefront.Identity{Subject: "storefront-admin-cli", Role: storefront.RoleAdmin}

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var configFile string
	var asJSON bool
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "storefront-admin",
		Short: "Storefront admin CLI",
		Long: `Storefront admin command line interface.

Talks to the configured metadata and blob stores directly. Configuration
comes from an optional config file, a .env file and the environment
(DATABASE_URL, STORAGE_URL, AUTH_SECRET, ...).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service activity to stderr")

	rootCmd.AddCommand(NewAssetsCommand())
	rootCmd.AddCommand(NewProductsCommand())
	rootCmd.AddCommand(NewUsersCommand())
	rootCmd.AddCommand(NewCartCommand())
	rootCmd.AddCommand(NewTokenCommand())
	rootCmd.AddCommand(NewPingCommand())

	return rootCmd
}

// loadConfig reads the config the same way the server does.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	return config.Load(config.WithFile(configFile), config.WithEnv())
}

// withRuntime builds the service for one command and releases it afterwards.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *config.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger = cfg.Logger(cmd.ErrOrStderr())
	}
	// The CLI never serves /metrics.
	cfg.EnableMetrics = false

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := cfg.Build(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(ctx, rt)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func wantJSON(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}
