// Package cmd holds the blackice command line: the long-running server and
// a few offline commands against the same database.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/black-ice-advisory/internal/adapter/duckdb"
	"github.com/couchcryptid/black-ice-advisory/internal/config"
	"github.com/couchcryptid/black-ice-advisory/internal/observability"
)

var databasePath string

var rootCmd = &cobra.Command{
	Use:   "blackice",
	Short: "Black ice risk advisories from live weather and community reports",
	Long: `blackice serves black ice risk predictions over HTTP, watches saved
locations for hazardous conditions, and learns from ground-truth reports.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "", "DuckDB file (overrides DATABASE_PATH)")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if databasePath != "" {
		cfg.DatabasePath = databasePath
	}
	return cfg, observability.NewLogger(cfg), nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*duckdb.Store, error) {
	store, err := duckdb.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database opened", "path", cfg.DatabasePath)
	return store, nil
}
