package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pitlane-dev/pitwall/internal/app"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show component health and index contents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStatus(cmd)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	status := a.Engine.Status(ctx)

	cmd.Printf("Index:     %s\n", connWord(status.IndexConnected))
	cmd.Printf("Generator: %s (%s)\n", connWord(status.LLMConnected), status.LLMModel)
	cmd.Printf("Vectors:   %d\n", status.TotalVectors)

	if len(status.Namespaces) > 0 {
		cmd.Println("Namespaces:")
		names := make([]string, 0, len(status.Namespaces))
		for ns := range status.Namespaces {
			names = append(names, ns)
		}
		sort.Strings(names)
		for _, ns := range names {
			cmd.Printf("  %-22s %d\n", ns, status.Namespaces[ns])
		}
	}

	cmd.Println("Configuration:")
	cmd.Printf("  Embedding model:      %s\n", status.EmbeddingModel)
	cmd.Printf("  Chunk size:           %d\n", status.ChunkSize)
	cmd.Printf("  Top-k:                %d\n", status.TopK)
	cmd.Printf("  Similarity threshold: %.2f\n", status.ScoreThreshold)

	return nil
}

func connWord(ok bool) string {
	if ok {
		return "connected"
	}
	return "unavailable"
}
