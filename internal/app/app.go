// Package app wires configuration into a running application: database
// pool, vector index, embedding and generation providers, retrieval
// engine, and the ingestion service.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitlane-dev/pitwall/internal/config"
	"github.com/pitlane-dev/pitwall/internal/database"
	"github.com/pitlane-dev/pitwall/internal/embedding"
	"github.com/pitlane-dev/pitwall/internal/index"
	"github.com/pitlane-dev/pitwall/internal/ingest"
	"github.com/pitlane-dev/pitwall/internal/live"
	"github.com/pitlane-dev/pitwall/internal/llm"
	"github.com/pitlane-dev/pitwall/internal/rag"
	"github.com/pitlane-dev/pitwall/internal/source"
)

// App holds the assembled application components.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Index  *index.Store
	Engine *rag.Engine
	Ingest *ingest.Service
}

// Setup builds every component from configuration. The database schema
// is migrated lazily on first index use, so Setup succeeds even against
// an empty database.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := cfg.PostgresConnectionString()
	pool, err := database.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	querier := index.NewPGQuerier(pool, func(context.Context) error {
		return database.Migrate(dsn)
	})

	embedder, err := embedding.NewGemini(ctx, embedding.GeminiConfig{
		APIKey:        cfg.GeminiAPIKey,
		Model:         cfg.EmbeddingModel,
		Dimension:     config.EmbeddingDimension,
		BatchSize:     cfg.EmbedBatchSize,
		BatchInterval: cfg.EmbedBatchInterval,
		Cooldown:      cfg.EmbedCooldown,
		Logger:        logger,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	store := index.New(querier, embedder, index.Config{
		TopK:           cfg.TopK,
		ScoreThreshold: cfg.SimilarityThreshold,
	}, logger)

	generator, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		Logger:      logger,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	liveClient := live.NewClient(live.Config{
		BaseURL: cfg.OpenF1BaseURL,
		Logger:  logger,
	})

	engine := rag.New(store, generator, liveClient, rag.Config{
		TopK:           cfg.TopK,
		ScoreThreshold: cfg.SimilarityThreshold,
		EmbeddingModel: cfg.EmbeddingModel,
		ChunkSize:      cfg.ChunkSize,
	}, logger)

	wiki := source.NewWikipedia(source.WikipediaConfig{
		Delay:   cfg.ScrapeDelay,
		Timeout: cfg.ScrapeTimeout,
		Retries: cfg.ScrapeRetries,
		Logger:  logger,
	})
	ergast := source.NewErgast(source.ErgastConfig{
		BaseURL: cfg.ErgastBaseURL,
		Timeout: cfg.ScrapeTimeout,
		Delay:   cfg.ScrapeDelay,
		Logger:  logger,
	})
	pipeline := ingest.New(nil, store, ingest.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}, logger)

	return &App{
		Config: cfg,
		Logger: logger,
		Pool:   pool,
		Index:  store,
		Engine: engine,
		Ingest: ingest.NewService(wiki, ergast, pipeline, logger),
	}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
