package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Gemini task types for retrieval embeddings.
const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

// ErrDimensionMismatch indicates the provider returned a vector of an
// unexpected dimension. This is a hard failure, never retried: a wrong
// dimension means misconfiguration, and storing the vector would poison
// the index.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// rateLimitPatterns match transient throttling signals in provider errors.
// The SDK does not expose typed errors for quota exhaustion, so this is
// string matching against err.Error(), same trade-off as the generation
// retry path.
var rateLimitPatterns = []string{"429", "quota", "rate limit", "resource_exhausted"}

// batchCaller issues one embedding request for a batch of texts.
// Split out of GeminiProvider so batching, pacing and backoff can be
// tested without the SDK.
type batchCaller interface {
	embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// GeminiConfig configures a GeminiProvider.
type GeminiConfig struct {
	APIKey    string
	Model     string // e.g. "gemini-embedding-001"
	Dimension int

	// BatchSize is the number of texts per request (default 20).
	BatchSize int

	// BatchInterval paces document batches to stay under the provider's
	// requests/tokens-per-minute ceiling (default 9s ≈ 7 batches/min).
	BatchInterval time.Duration

	// Cooldown is the backoff window after a rate-limit signal before the
	// single retry of the same batch (default 60s).
	Cooldown time.Duration

	Logger *slog.Logger
}

// GeminiProvider implements Provider on the Gemini embedding API.
//
// Throttling policy: batches are paced by a rate.Limiter; on a rate-limit
// signal the provider waits one cooldown window and retries the same batch
// once before propagating the failure. All other errors surface
// immediately.
type GeminiProvider struct {
	caller    batchCaller
	model     string
	dim       int
	batchSize int
	limiter   *rate.Limiter
	cooldown  time.Duration
	logger    *slog.Logger

	// sleep is swappable in tests; the default honors ctx cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGemini creates a Gemini-backed embedding provider.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", cfg.Dimension)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return newGemini(&genaiCaller{client: client, model: cfg.Model, dim: cfg.Dimension}, cfg), nil
}

// newGemini wires a provider around any batchCaller. Used directly by tests.
func newGemini(caller batchCaller, cfg GeminiConfig) *GeminiProvider {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = 9 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &GeminiProvider{
		caller:    caller,
		model:     cfg.Model,
		dim:       cfg.Dimension,
		batchSize: cfg.BatchSize,
		limiter:   rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
		cooldown:  cfg.Cooldown,
		logger:    cfg.Logger,
		sleep:     sleepCtx,
	}
}

// EmbedDocuments embeds texts in fixed-size batches, pacing between
// batches and retrying each batch at most once after a rate-limit signal.
func (p *GeminiProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	totalBatches := (len(texts) + p.batchSize - 1) / p.batchSize

	for i := 0; i < len(texts); i += p.batchSize {
		end := min(i+p.batchSize, len(texts))
		batch := texts[i:end]
		batchNum := i/p.batchSize + 1

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pacing batch %d: %w", batchNum, err)
		}

		p.logger.Debug("embedding batch",
			"batch", batchNum, "total", totalBatches, "texts", len(batch))

		embs, err := p.embedBatchWithBackoff(ctx, batch, batchNum)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, embs...)
	}

	return vectors, nil
}

// embedBatchWithBackoff calls the provider once, and once more after the
// cooldown window if the first attempt hit a rate limit.
func (p *GeminiProvider) embedBatchWithBackoff(ctx context.Context, batch []string, batchNum int) ([][]float32, error) {
	embs, err := p.caller.embedBatch(ctx, batch, taskDocument)
	if err == nil {
		return p.checkBatch(embs, len(batch))
	}
	if !isRateLimited(err) {
		return nil, fmt.Errorf("embedding batch %d: %w", batchNum, err)
	}

	p.logger.Warn("rate limited, backing off",
		"batch", batchNum, "cooldown", p.cooldown, "error", err)
	if sleepErr := p.sleep(ctx, p.cooldown); sleepErr != nil {
		return nil, fmt.Errorf("backoff interrupted: %w", sleepErr)
	}

	embs, err = p.caller.embedBatch(ctx, batch, taskDocument)
	if err != nil {
		return nil, fmt.Errorf("embedding batch %d after backoff: %w", batchNum, err)
	}
	return p.checkBatch(embs, len(batch))
}

// EmbedQuery embeds a single query text.
func (p *GeminiProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embs, err := p.caller.embedBatch(ctx, []string{text}, taskQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	checked, err := p.checkBatch(embs, 1)
	if err != nil {
		return nil, err
	}
	return checked[0], nil
}

// Dimension returns the configured embedding dimension.
func (p *GeminiProvider) Dimension() int {
	return p.dim
}

// checkBatch verifies count and dimension of a returned batch.
func (p *GeminiProvider) checkBatch(embs [][]float32, want int) ([][]float32, error) {
	if len(embs) != want {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(embs), want)
	}
	for i, e := range embs {
		if len(e) != p.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d",
				ErrDimensionMismatch, i, len(e), p.dim)
		}
	}
	return embs, nil
}

// isRateLimited reports whether err looks like provider throttling.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range rateLimitPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// sleepCtx sleeps for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// genaiCaller is the production batchCaller backed by the genai SDK.
type genaiCaller struct {
	client *genai.Client
	model  string
	dim    int
}

func (c *genaiCaller) embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dim := int32(c.dim)
	resp, err := c.client.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
