package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Record is one chunk row headed for storage.
type Record struct {
	ID        string
	Namespace string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// Match is one similarity search hit.
type Match struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]string
}

// NamespaceCount pairs a namespace with its record count.
type NamespaceCount struct {
	Namespace string
	Count     int
}

// Querier is the storage contract the Store depends on. The production
// implementation talks to PostgreSQL with pgvector; tests substitute an
// in-memory version.
type Querier interface {
	// Ready ensures the schema exists. Safe to call repeatedly.
	Ready(ctx context.Context) error
	// UpsertBatch writes records, overwriting rows with matching ids.
	// Returns the number of rows written.
	UpsertBatch(ctx context.Context, records []Record) (int, error)
	// SearchNamespace returns up to limit matches within one namespace,
	// ordered by descending similarity.
	SearchNamespace(ctx context.Context, namespace string, embedding []float32, limit int) ([]Match, error)
	// Namespaces lists populated namespaces with record counts, ordered
	// by namespace.
	Namespaces(ctx context.Context) ([]NamespaceCount, error)
	// DeleteNamespace removes all records in a namespace and reports how
	// many were removed.
	DeleteNamespace(ctx context.Context, namespace string) (int, error)
}

// PGQuerier implements Querier on a pgx connection pool.
type PGQuerier struct {
	pool  *pgxpool.Pool
	ready func(ctx context.Context) error
}

// NewPGQuerier wraps a pool. The ready function runs schema migrations;
// the Store invokes it lazily before the first operation.
func NewPGQuerier(pool *pgxpool.Pool, ready func(ctx context.Context) error) *PGQuerier {
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}
	return &PGQuerier{pool: pool, ready: ready}
}

func (q *PGQuerier) Ready(ctx context.Context) error {
	return q.ready(ctx)
}

func (q *PGQuerier) UpsertBatch(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(`
			INSERT INTO chunks (id, namespace, content, embedding, metadata)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				namespace = EXCLUDED.namespace,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding,
				metadata = EXCLUDED.metadata,
				updated_at = now()`,
			r.ID, r.Namespace, r.Content, pgvector.NewVector(r.Embedding), r.Metadata)
	}

	results := q.pool.SendBatch(ctx, batch)
	defer func() {
		_ = results.Close()
	}()

	written := 0
	for range records {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("upserting chunk: %w", err)
		}
		written += int(tag.RowsAffected())
	}

	return written, nil
}

func (q *PGQuerier) SearchNamespace(ctx context.Context, namespace string, embedding []float32, limit int) ([]Match, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, content, 1 - (embedding <=> $1) AS score, metadata
		FROM chunks
		WHERE namespace = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(embedding), namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("searching namespace %q: %w", namespace, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Content, &m.Score, &m.Metadata); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	return matches, nil
}

func (q *PGQuerier) Namespaces(ctx context.Context) ([]NamespaceCount, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT namespace, count(*)
		FROM chunks
		GROUP BY namespace
		ORDER BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	defer rows.Close()

	var counts []NamespaceCount
	for rows.Next() {
		var nc NamespaceCount
		if err := rows.Scan(&nc.Namespace, &nc.Count); err != nil {
			return nil, fmt.Errorf("scanning namespace count: %w", err)
		}
		counts = append(counts, nc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating namespaces: %w", err)
	}

	return counts, nil
}

func (q *PGQuerier) DeleteNamespace(ctx context.Context, namespace string) (int, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM chunks WHERE namespace = $1`, namespace)
	if err != nil {
		return 0, fmt.Errorf("deleting namespace %q: %w", namespace, err)
	}
	return int(tag.RowsAffected()), nil
}
