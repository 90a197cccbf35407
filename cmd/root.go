// Package cmd implements the pitwall CLI.
package cmd

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pitlane-dev/pitwall/internal/config"
	"github.com/pitlane-dev/pitwall/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "pitwall",
	Short: "pitwall - Formula 1 knowledge base with retrieval-augmented answers",
	Long: `pitwall ingests Formula 1 content from Wikipedia and the Jolpica API
into a pgvector-backed knowledge base and answers questions about it,
grounded in retrieved context and optionally augmented with live
session data from OpenF1.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	// Local development keeps secrets in .env; absence is fine.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

// loadConfig loads configuration and installs the application logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	return cfg, logger, nil
}
