// Package embedding turns text into vectors through a provider-agnostic
// interface. The ingestion and query paths both consume Provider; the
// Gemini adapter in gemini.go is the reference implementation.
package embedding

import "context"

// Provider generates vector embeddings for documents and queries.
//
// Implementations must be safe for concurrent use; the same handle is
// shared by the ingestion and retrieval paths.
type Provider interface {
	// EmbedDocuments embeds a batch of document texts. The result is
	// order-preserving and 1:1 with the input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int
}
