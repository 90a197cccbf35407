package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitlane-dev/pitwall/internal/app"
	"github.com/pitlane-dev/pitwall/internal/ingest"
)

var (
	ingestTarget       string
	ingestForceRefresh bool
	ingestYears        []int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Acquire documents and load them into the knowledge base",
	Long: `Scrapes Wikipedia articles and fetches structured season data from
the Jolpica API, chunks the documents, embeds them, and upserts the
vectors into the index. Re-running is safe: identical content maps to
the same record ids.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngest(cmd)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTarget, "target", ingest.TargetAll,
		"what to ingest: all, wikipedia, or ergast")
	ingestCmd.Flags().BoolVar(&ingestForceRefresh, "force-refresh", false,
		"delete touched namespaces before upserting")
	ingestCmd.Flags().IntSliceVar(&ingestYears, "years", nil,
		"seasons to fetch from the structured data API (default 2020-2025)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command) error {
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

	years := ingestYears
	if len(years) == 0 {
		years = cfg.IngestYears
	}

	result, err := a.Ingest.Ingest(ctx, ingestTarget, ingestForceRefresh, years)
	if err != nil {
		return fmt.Errorf("running ingestion: %w", err)
	}

	cmd.Printf("Ingestion %s\n", successWord(result.Success))
	cmd.Printf("  Documents: %d\n", result.Documents)
	cmd.Printf("  Chunks:    %d\n", result.TotalChunks)
	cmd.Printf("  Upserted:  %d\n", result.TotalUpserted)
	cmd.Printf("  Elapsed:   %s\n", result.Elapsed.Round(time.Millisecond))
	for _, g := range result.Groups {
		if g.Err != nil {
			cmd.Printf("  %-22s FAILED: %v\n", g.Namespace, g.Err)
			continue
		}
		cmd.Printf("  %-22s %d docs, %d chunks, %d upserted\n",
			g.Namespace, g.Documents, g.Chunks, g.Upserted)
	}

	if !result.Success {
		return fmt.Errorf("one or more namespace groups failed")
	}
	return nil
}

func successWord(ok bool) string {
	if ok {
		return "succeeded"
	}
	return "completed with failures"
}
