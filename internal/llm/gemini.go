package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures a Gemini generator.
type GeminiConfig struct {
	APIKey      string
	Model       string // e.g. "gemini-2.5-flash"
	Temperature float64
	MaxTokens   int
	Logger      *slog.Logger
}

// Gemini implements Generator on the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	logger      *slog.Logger
}

// NewGemini creates a Gemini-backed generator.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens), // #nosec G115 -- validated by config
		logger:      cfg.Logger,
	}, nil
}

// Generate runs a single prompt through the model.
func (g *Gemini) Generate(ctx context.Context, prompt string) (Result, error) {
	start := time.Now()

	temp := g.temperature
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: g.maxTokens,
	})
	if err != nil {
		return Result{}, fmt.Errorf("generating content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	latency := time.Since(start)

	var tokens int32
	if resp.UsageMetadata != nil {
		tokens = resp.UsageMetadata.TotalTokenCount
	}
	if tokens == 0 {
		// Rough estimate when the backend omits usage metadata.
		tokens = int32(len(strings.Fields(prompt)) + len(strings.Fields(text))) // #nosec G115
	}

	g.logger.Debug("generation complete",
		"model", g.model, "latency", latency, "tokens", tokens)

	return Result{
		Text:       text,
		TokensUsed: tokens,
		Latency:    latency,
		Model:      g.model,
	}, nil
}

// ModelName returns the configured model identifier.
func (g *Gemini) ModelName() string {
	return g.model
}
