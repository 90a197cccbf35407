// Package index implements the namespace-partitioned vector index:
// deterministic idempotent upserts, cross-namespace merge search, and
// namespace lifecycle operations.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pitlane-dev/pitwall/internal/chunker"
	"github.com/pitlane-dev/pitwall/internal/embedding"
)

const (
	// maxStoredContent bounds how much chunk text is persisted per record.
	maxStoredContent = 3000
	// idContentPrefix is how much content feeds the deterministic id.
	idContentPrefix = 200
	// upsertBatchSize bounds how many records go to storage per round trip.
	upsertBatchSize = 100
)

// Config holds the Store's search defaults.
type Config struct {
	TopK           int
	ScoreThreshold float64
}

// Store coordinates embedding and storage for the vector index.
type Store struct {
	querier  Querier
	embedder embedding.Provider
	cfg      Config
	logger   *slog.Logger

	readyOnce sync.Once
	readyErr  error
}

// New creates a Store. The querier's schema is prepared lazily on first
// use, so construction never touches the database.
func New(querier Querier, embedder embedding.Provider, cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		querier:  querier,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// ensureReady prepares the schema exactly once. A preparation failure is
// sticky: every subsequent call reports the same error.
func (s *Store) ensureReady(ctx context.Context) error {
	s.readyOnce.Do(func() {
		s.readyErr = s.querier.Ready(ctx)
	})
	return s.readyErr
}

// RecordID derives the deterministic record id for a chunk: a truncated
// digest of the namespace and the chunk's leading content. Identical
// content in the same namespace always maps to the same id.
func RecordID(namespace, content string) string {
	prefix := content
	if len(prefix) > idContentPrefix {
		prefix = prefix[:idContentPrefix]
	}
	sum := sha256.Sum256([]byte(namespace + ":" + prefix))
	return hex.EncodeToString(sum[:])[:16]
}

// truncateRunes caps s at limit runes. Cutting on a rune boundary keeps
// stored content valid UTF-8, which the text column requires.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// Upsert embeds chunks and writes them into a namespace. Re-upserting the
// same chunks overwrites the existing rows, so the call is idempotent.
func (s *Store) Upsert(ctx context.Context, namespace string, chunks []chunker.Chunk) (UpsertResult, error) {
	start := time.Now()
	result := UpsertResult{Namespace: namespace}

	if len(chunks) == 0 {
		result.Elapsed = time.Since(start)
		return result, nil
	}
	if err := s.ensureReady(ctx); err != nil {
		return result, fmt.Errorf("preparing index: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return result, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}

	records := make([]Record, len(chunks))
	for i, c := range chunks {
		content := truncateRunes(c.Text, maxStoredContent)
		records[i] = Record{
			ID:        RecordID(namespace, c.Text),
			Namespace: namespace,
			Content:   content,
			Embedding: vectors[i],
			Metadata:  c.Metadata,
		}
	}

	for offset := 0; offset < len(records); offset += upsertBatchSize {
		end := min(offset+upsertBatchSize, len(records))
		written, err := s.querier.UpsertBatch(ctx, records[offset:end])
		if err != nil {
			return result, fmt.Errorf("writing batch at offset %d: %w", offset, err)
		}
		result.Written += written
	}

	result.Elapsed = time.Since(start)
	s.logger.Info("chunks upserted",
		"namespace", namespace, "count", result.Written, "elapsed", result.Elapsed)

	return result, nil
}

// Search embeds the query once and runs a similarity search across the
// selected namespaces (all populated ones by default). Per-namespace
// results are merged, ordered by descending score, capped at top-k, then
// filtered by the score threshold. An empty result is not an error.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Document, error) {
	cfg := searchConfig{
		topK:      s.cfg.TopK,
		threshold: s.cfg.ScoreThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := s.ensureReady(ctx); err != nil {
		return nil, fmt.Errorf("preparing index: %w", err)
	}

	namespaces := cfg.namespaces
	if len(namespaces) == 0 {
		counts, err := s.querier.Namespaces(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing namespaces: %w", err)
		}
		for _, nc := range counts {
			namespaces = append(namespaces, nc.Namespace)
		}
	}
	if len(namespaces) == 0 {
		return nil, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var merged []Document
	for _, ns := range namespaces {
		matches, err := s.querier.SearchNamespace(ctx, ns, vector, cfg.topK)
		if err != nil {
			return nil, fmt.Errorf("searching namespace %q: %w", ns, err)
		}
		for _, m := range matches {
			merged = append(merged, Document{
				ID:        m.ID,
				Content:   m.Content,
				Score:     m.Score,
				Namespace: ns,
				Metadata:  m.Metadata,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > cfg.topK {
		merged = merged[:cfg.topK]
	}

	filtered := merged[:0]
	for _, d := range merged {
		if d.Score >= cfg.threshold {
			filtered = append(filtered, d)
		}
	}

	s.logger.Debug("search complete",
		"namespaces", len(namespaces), "results", len(filtered), "top_k", cfg.topK)

	return filtered, nil
}

// DeleteNamespace removes every record in a namespace and reports whether
// anything was actually deleted.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) (DeleteOutcome, error) {
	if err := s.ensureReady(ctx); err != nil {
		return NamespaceAbsent, fmt.Errorf("preparing index: %w", err)
	}

	removed, err := s.querier.DeleteNamespace(ctx, namespace)
	if err != nil {
		return NamespaceAbsent, fmt.Errorf("deleting namespace %q: %w", namespace, err)
	}
	if removed == 0 {
		return NamespaceAbsent, nil
	}

	s.logger.Info("namespace deleted", "namespace", namespace, "records", removed)
	return NamespaceDeleted, nil
}

// Stats reports record counts per populated namespace.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if err := s.ensureReady(ctx); err != nil {
		return Stats{}, fmt.Errorf("preparing index: %w", err)
	}

	counts, err := s.querier.Namespaces(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing namespaces: %w", err)
	}

	stats := Stats{
		Dimension:  s.embedder.Dimension(),
		Namespaces: make(map[string]int, len(counts)),
	}
	for _, nc := range counts {
		stats.Namespaces[nc.Namespace] = nc.Count
		stats.TotalRecords += nc.Count
	}

	return stats, nil
}
