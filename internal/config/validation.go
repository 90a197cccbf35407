package config

import "fmt"

// validSSLModes are the SSL modes accepted by the pgx driver.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks all configuration values and returns the first violation
// found, wrapped around the matching sentinel error.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}

	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding model must not be empty", ErrInvalidEmbedding)
	}
	if c.EmbedBatchSize < 1 || c.EmbedBatchSize > 100 {
		return fmt.Errorf("%w: embed batch size must be 1-100, got %d", ErrInvalidEmbedding, c.EmbedBatchSize)
	}
	if c.EmbedBatchInterval < 0 || c.EmbedCooldown < 0 {
		return fmt.Errorf("%w: embed pacing intervals must not be negative", ErrInvalidEmbedding)
	}

	if c.LLMModel == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModel)
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("%w: temperature must be 0.0-2.0, got %.2f", ErrInvalidModel, c.LLMTemperature)
	}
	if c.LLMMaxTokens < 1 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidModel, c.LLMMaxTokens)
	}

	if c.ChunkSize < 100 || c.ChunkSize > 10000 {
		return fmt.Errorf("%w: chunk size must be 100-10000, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap must be 0 <= overlap < chunk size, got %d", ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: top-k must be 1-50, got %d", ErrInvalidRetrieval, c.TopK)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold must be 0.0-1.0, got %.2f", ErrInvalidRetrieval, c.SimilarityThreshold)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgres)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: unknown sslmode %q", ErrInvalidPostgres, c.PostgresSSLMode)
	}

	return nil
}
