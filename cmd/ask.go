package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitlane-dev/pitwall/internal/app"
	"github.com/pitlane-dev/pitwall/internal/rag"
)

var (
	askMode      string
	askTopK      int
	askNamespace string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().StringVar(&askMode, "mode", string(rag.ModeRAG),
		"answer mode: rag, direct, or compare")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0,
		"number of documents to retrieve (0 = configured default)")
	askCmd.Flags().StringVar(&askNamespace, "namespace", "",
		"restrict retrieval to one namespace")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, question string) error {
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

	if askMode == string(rag.ModeCompare) {
		cmp := a.Engine.Compare(ctx, question, askTopK)
		cmd.Println("=== Grounded (RAG) ===")
		printAnswer(cmd, cmp.RAG)
		cmd.Println("\n=== Direct ===")
		printAnswer(cmd, cmp.Direct)
		return nil
	}

	answer := a.Engine.Query(ctx, rag.Request{
		Question:  question,
		Mode:      rag.Mode(askMode),
		TopK:      askTopK,
		Namespace: askNamespace,
	})
	printAnswer(cmd, answer)

	if answer.Err != "" {
		return fmt.Errorf("query failed: %s", answer.Err)
	}
	return nil
}

func printAnswer(cmd *cobra.Command, a rag.Answer) {
	if a.Err != "" {
		cmd.Printf("Error: %s\n", a.Err)
		return
	}

	cmd.Println(a.Text)

	if len(a.Sources) > 0 {
		cmd.Println("\nSources:")
		for i, s := range a.Sources {
			cmd.Printf("  %d. %s (%s, score %.3f)\n", i+1, s.Title, s.Namespace, s.Score)
		}
	}
	cmd.Printf("\n[%s | retrieval %s | generation %s | %d tokens]\n",
		a.Mode,
		a.Metrics.RetrievalLatency.Round(time.Millisecond),
		a.Metrics.GenerationLatency.Round(time.Millisecond),
		a.Metrics.Tokens)
}
