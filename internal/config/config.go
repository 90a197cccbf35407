// Package config provides application configuration with multi-source
// priority:
//
//  1. Environment variables (prefix PITWALL_, runtime override)
//  2. Config file (~/.pitwall/config.yaml)
//  3. Default values
//
// Secrets (API keys, database password) are read from the environment only
// and never logged. Validation lives in validation.go and uses sentinel
// errors so callers can match with errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Gemini API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunking indicates chunk size/overlap are out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates top-k or similarity threshold are out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidEmbedding indicates the embedding configuration is invalid.
	ErrInvalidEmbedding = errors.New("invalid embedding configuration")

	// ErrInvalidModel indicates the generation model configuration is invalid.
	ErrInvalidModel = errors.New("invalid model configuration")

	// ErrInvalidPostgres indicates the PostgreSQL connection settings are invalid.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")
)

// EmbeddingDimension is the fixed dimension of stored vectors. The value is
// baked into the pgvector column type, so changing it requires a new
// migration and a full re-ingestion.
const EmbeddingDimension = 768

// Config holds the full application configuration.
type Config struct {
	// Providers
	GeminiAPIKey   string
	EmbeddingModel string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int

	// Embedding throughput (free-tier ceilings: 100 RPM / 30K TPM)
	EmbedBatchSize     int
	EmbedBatchInterval time.Duration
	EmbedCooldown      time.Duration

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	TopK                int
	SimilarityThreshold float64

	// PostgreSQL
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDBName   string
	PostgresSSLMode  string

	// Document sources
	ErgastBaseURL string
	OpenF1BaseURL string
	ScrapeDelay   time.Duration
	ScrapeTimeout time.Duration
	ScrapeRetries int
	IngestYears   []int

	// Server
	ServerAddr string

	// Logging
	LogLevel string
	LogJSON  bool
}

// Load reads configuration from defaults, the optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PITWALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets follow the provider's conventional variable names.
	_ = v.BindEnv("gemini_api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("postgres_password", "PITWALL_POSTGRES_PASSWORD", "PGPASSWORD")

	if dir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, ".pitwall"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg := &Config{
		GeminiAPIKey:   v.GetString("gemini_api_key"),
		EmbeddingModel: v.GetString("embedding_model"),
		LLMModel:       v.GetString("llm_model"),
		LLMTemperature: v.GetFloat64("llm_temperature"),
		LLMMaxTokens:   v.GetInt("llm_max_tokens"),

		EmbedBatchSize:     v.GetInt("embed_batch_size"),
		EmbedBatchInterval: v.GetDuration("embed_batch_interval"),
		EmbedCooldown:      v.GetDuration("embed_cooldown"),

		ChunkSize:    v.GetInt("chunk_size"),
		ChunkOverlap: v.GetInt("chunk_overlap"),

		TopK:                v.GetInt("top_k"),
		SimilarityThreshold: v.GetFloat64("similarity_threshold"),

		PostgresHost:     v.GetString("postgres_host"),
		PostgresPort:     v.GetInt("postgres_port"),
		PostgresUser:     v.GetString("postgres_user"),
		PostgresPassword: v.GetString("postgres_password"),
		PostgresDBName:   v.GetString("postgres_dbname"),
		PostgresSSLMode:  v.GetString("postgres_sslmode"),

		ErgastBaseURL: v.GetString("ergast_base_url"),
		OpenF1BaseURL: v.GetString("openf1_base_url"),
		ScrapeDelay:   v.GetDuration("scrape_delay"),
		ScrapeTimeout: v.GetDuration("scrape_timeout"),
		ScrapeRetries: v.GetInt("scrape_retries"),
		IngestYears:   v.GetIntSlice("ingest_years"),

		ServerAddr: v.GetString("server_addr"),

		LogLevel: v.GetString("log_level"),
		LogJSON:  v.GetBool("log_json"),
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("embedding_model", "gemini-embedding-001")
	v.SetDefault("llm_model", "gemini-2.5-flash")
	v.SetDefault("llm_temperature", 0.3)
	v.SetDefault("llm_max_tokens", 2048)

	v.SetDefault("embed_batch_size", 20)
	v.SetDefault("embed_batch_interval", 9*time.Second)
	v.SetDefault("embed_cooldown", 60*time.Second)

	v.SetDefault("chunk_size", 800)
	v.SetDefault("chunk_overlap", 200)

	v.SetDefault("top_k", 5)
	v.SetDefault("similarity_threshold", 0.70)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "pitwall")
	v.SetDefault("postgres_dbname", "pitwall")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("ergast_base_url", "https://api.jolpi.ca/ergast/f1")
	v.SetDefault("openf1_base_url", "https://api.openf1.org/v1")
	v.SetDefault("scrape_delay", time.Second)
	v.SetDefault("scrape_timeout", 15*time.Second)
	v.SetDefault("scrape_retries", 3)
	v.SetDefault("ingest_years", []int{2020, 2021, 2022, 2023, 2024, 2025})

	v.SetDefault("server_addr", ":8080")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}
