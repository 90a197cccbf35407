package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pitlane-dev/pitwall/internal/source"
)

// Acquisition targets accepted by Service.Ingest.
const (
	TargetAll       = "all"
	TargetWikipedia = "wikipedia"
	TargetErgast    = "ergast"
)

// WikipediaFetcher acquires scraped articles.
type WikipediaFetcher interface {
	ScrapeAll(ctx context.Context, forceRefresh bool, seen map[string]bool) ([]source.Document, source.Stats)
}

// ErgastFetcher acquires structured season data.
type ErgastFetcher interface {
	FetchAll(ctx context.Context, years []int) ([]source.Document, source.Stats)
}

// Service runs end-to-end ingestion: acquire documents from the selected
// sources, then chunk and upsert them through the pipeline.
type Service struct {
	wiki     WikipediaFetcher
	ergast   ErgastFetcher
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewService wires acquisition to the pipeline.
func NewService(wiki WikipediaFetcher, ergast ErgastFetcher, pipeline *Pipeline, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{wiki: wiki, ergast: ergast, pipeline: pipeline, logger: logger}
}

// Ingest acquires documents for the target ("all", "wikipedia", or
// "ergast") and feeds them through the pipeline. years only applies to
// the ergast target; nil means the default seasons.
func (s *Service) Ingest(ctx context.Context, target string, forceRefresh bool, years []int) (Result, error) {
	var docs []source.Document

	switch target {
	case TargetAll, "":
		wikiDocs, wikiStats := s.wiki.ScrapeAll(ctx, forceRefresh, nil)
		ergastDocs, ergastStats := s.ergast.FetchAll(ctx, years)
		docs = append(wikiDocs, ergastDocs...)
		s.logger.Info("acquisition complete",
			"wikipedia_ok", wikiStats.Success, "wikipedia_failed", wikiStats.Failed,
			"ergast_ok", ergastStats.Success, "ergast_failed", ergastStats.Failed)
	case TargetWikipedia:
		var stats source.Stats
		docs, stats = s.wiki.ScrapeAll(ctx, forceRefresh, nil)
		s.logger.Info("acquisition complete", "wikipedia_ok", stats.Success, "wikipedia_failed", stats.Failed)
	case TargetErgast:
		var stats source.Stats
		docs, stats = s.ergast.FetchAll(ctx, years)
		s.logger.Info("acquisition complete", "ergast_ok", stats.Success, "ergast_failed", stats.Failed)
	default:
		return Result{}, fmt.Errorf("unknown ingestion target %q", target)
	}

	if len(docs) == 0 {
		return Result{}, fmt.Errorf("no documents acquired for target %q", target)
	}

	return s.pipeline.Ingest(ctx, docs, forceRefresh)
}
