package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/pitlane-dev/pitwall/internal/chunker"
	"github.com/pitlane-dev/pitwall/internal/index"
	"github.com/pitlane-dev/pitwall/internal/source"
)

// Upserter is the slice of the vector index the pipeline needs.
type Upserter interface {
	Upsert(ctx context.Context, namespace string, chunks []chunker.Chunk) (index.UpsertResult, error)
	DeleteNamespace(ctx context.Context, namespace string) (index.DeleteOutcome, error)
}

// GroupResult reports the outcome for one namespace group.
type GroupResult struct {
	Namespace string
	Documents int
	Chunks    int
	Upserted  int
	Err       error
}

// Result aggregates a pipeline run. Success requires every touched
// namespace group to have completed without error.
type Result struct {
	Success       bool
	Documents     int
	TotalChunks   int
	TotalUpserted int
	Groups        []GroupResult
	Elapsed       time.Duration
}

// Config tunes the pipeline.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	// SettleDelay is the pause after a force-refresh delete, giving the
	// index time to converge before re-upserting.
	SettleDelay time.Duration
}

// Pipeline routes, chunks, and upserts documents.
type Pipeline struct {
	router *Router
	index  Upserter
	cfg    Config
	logger *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a pipeline. A nil router falls back to DefaultRouter.
func New(router *Router, upserter Upserter, cfg Config, logger *slog.Logger) *Pipeline {
	if router == nil {
		router = DefaultRouter()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		router: router,
		index:  upserter,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ingest routes documents into namespace groups, chunks each document
// with its source metadata, and upserts group by group in deterministic
// namespace order. With forceRefresh set, every namespace about to be
// written is deleted first. A failing group does not abort the others.
func (p *Pipeline) Ingest(ctx context.Context, docs []source.Document, forceRefresh bool) (Result, error) {
	start := time.Now()
	result := Result{Documents: len(docs)}

	if len(docs) == 0 {
		result.Elapsed = time.Since(start)
		return result, nil
	}

	groups := make(map[string][]source.Document)
	for _, doc := range docs {
		ns := p.router.Route(doc.Category)
		groups[ns] = append(groups[ns], doc)
	}

	namespaces := make([]string, 0, len(groups))
	for ns := range groups {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	if forceRefresh {
		for _, ns := range namespaces {
			outcome, err := p.index.DeleteNamespace(ctx, ns)
			if err != nil {
				return result, fmt.Errorf("refreshing namespace %q: %w", ns, err)
			}
			p.logger.Info("namespace refresh", "namespace", ns, "outcome", outcome.String())
		}
		if err := p.sleep(ctx, p.cfg.SettleDelay); err != nil {
			return result, err
		}
	}

	allOK := true
	for _, ns := range namespaces {
		group := p.ingestGroup(ctx, ns, groups[ns])
		result.Groups = append(result.Groups, group)
		result.TotalChunks += group.Chunks
		result.TotalUpserted += group.Upserted
		if group.Err != nil {
			allOK = false
			p.logger.Error("namespace group failed", "namespace", ns, "error", group.Err)
		}
	}

	result.Success = allOK
	result.Elapsed = time.Since(start)

	p.logger.Info("ingestion complete",
		"documents", result.Documents,
		"chunks", result.TotalChunks,
		"upserted", result.TotalUpserted,
		"success", result.Success,
		"elapsed", result.Elapsed)

	return result, nil
}

func (p *Pipeline) ingestGroup(ctx context.Context, namespace string, docs []source.Document) GroupResult {
	group := GroupResult{Namespace: namespace, Documents: len(docs)}

	var chunks []chunker.Chunk
	for _, doc := range docs {
		meta := map[string]string{
			"source":   doc.URL,
			"title":    doc.Title,
			"category": doc.Category,
			"priority": strconv.Itoa(doc.Priority),
		}
		chunks = append(chunks, chunker.Split(doc.Content, meta, p.cfg.ChunkSize, p.cfg.ChunkOverlap)...)
	}
	group.Chunks = len(chunks)

	upserted, err := p.index.Upsert(ctx, namespace, chunks)
	if err != nil {
		group.Err = err
		return group
	}
	group.Upserted = upserted.Written

	return group
}
