// Package rag is the retrieval orchestrator: it answers questions in
// grounded (retrieval-augmented), direct, or side-by-side comparison
// mode, augmenting with live session data when the question calls for it.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pitlane-dev/pitwall/internal/index"
	"github.com/pitlane-dev/pitwall/internal/live"
	"github.com/pitlane-dev/pitwall/internal/llm"
)

// Mode selects the answering strategy.
type Mode string

const (
	// ModeRAG grounds the answer in retrieved knowledge base context.
	ModeRAG Mode = "rag"
	// ModeDirect asks the model without retrieval.
	ModeDirect Mode = "direct"
	// ModeCompare runs both and returns the pair.
	ModeCompare Mode = "compare"
)

// insufficientKnowledge is the terminal answer when retrieval finds
// nothing above the score threshold. No generation call is made.
const insufficientKnowledge = "I couldn't find relevant information in the F1 knowledge base " +
	"for your question. Try rephrasing or check if the knowledge base has been initialized."

const (
	// contextDocLimit truncates each retrieved document in the prompt.
	contextDocLimit = 1500
	// excerptLimit bounds source excerpts in responses.
	excerptLimit = 300
)

// Searcher is the slice of the vector index the engine needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...index.SearchOption) ([]index.Document, error)
	Stats(ctx context.Context) (index.Stats, error)
}

// Request is one question to answer.
type Request struct {
	Question  string
	Mode      Mode
	TopK      int    // 0 means the configured default
	Namespace string // restrict retrieval to one namespace
}

// Source describes one retrieved document backing an answer.
type Source struct {
	Title     string
	URL       string
	Category  string
	Namespace string
	Score     float64
	Excerpt   string
}

// Metrics carries per-answer latency and usage numbers.
type Metrics struct {
	RetrievalLatency   time.Duration
	GenerationLatency  time.Duration
	TotalLatency       time.Duration
	Tokens             int32
	DocumentsRetrieved int
	AvgScore           float64
}

// Answer is the result of one query. Success is false both for
// failures (Err set) and for the insufficient-knowledge terminal.
type Answer struct {
	Success     bool
	Question    string
	Mode        Mode
	Text        string
	Sources     []Source
	ContextUsed int
	Metrics     Metrics
	Err         string
}

// Comparison pairs a grounded and an ungrounded answer to the same
// question.
type Comparison struct {
	Question string
	RAG      Answer
	Direct   Answer
}

// Config echoes the retrieval defaults and identifies the models for
// status reporting.
type Config struct {
	TopK           int
	ScoreThreshold float64
	EmbeddingModel string
	ChunkSize      int
}

// Engine wires retrieval, generation, and live augmentation together.
type Engine struct {
	index  Searcher
	gen    llm.Generator
	live   live.Augmenter
	cfg    Config
	logger *slog.Logger
}

// New builds an engine. The live augmenter may be nil to disable live
// data entirely.
func New(searcher Searcher, gen llm.Generator, augmenter live.Augmenter, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		index:  searcher,
		gen:    gen,
		live:   augmenter,
		cfg:    cfg,
		logger: logger,
	}
}

// Query answers one request in its requested mode. It never panics:
// any internal failure comes back as a failed Answer.
func (e *Engine) Query(ctx context.Context, req Request) (answer Answer) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("query panicked", "question", req.Question, "panic", r)
			answer = e.failedAnswer(req, fmt.Sprintf("internal error: %v", r))
		}
	}()

	switch req.Mode {
	case ModeDirect:
		return e.answerDirect(ctx, req)
	case ModeRAG, "":
		req.Mode = ModeRAG
		return e.answerRAG(ctx, req)
	default:
		return e.failedAnswer(req, fmt.Sprintf("unsupported mode %q", req.Mode))
	}
}

// Compare runs both modes for the same question. A failure on one side
// never contaminates the other.
func (e *Engine) Compare(ctx context.Context, question string, topK int) Comparison {
	ragReq := Request{Question: question, Mode: ModeRAG, TopK: topK}
	directReq := Request{Question: question, Mode: ModeDirect}
	return Comparison{
		Question: question,
		RAG:      e.Query(ctx, ragReq),
		Direct:   e.Query(ctx, directReq),
	}
}

func (e *Engine) failedAnswer(req Request, msg string) Answer {
	return Answer{
		Question: req.Question,
		Mode:     req.Mode,
		Err:      msg,
	}
}

func (e *Engine) answerRAG(ctx context.Context, req Request) Answer {
	totalStart := time.Now()

	var opts []index.SearchOption
	if req.TopK > 0 {
		opts = append(opts, index.WithTopK(req.TopK))
	}
	if req.Namespace != "" {
		opts = append(opts, index.WithNamespaces(req.Namespace))
	}

	retrievalStart := time.Now()
	docs, err := e.index.Search(ctx, req.Question, opts...)
	retrievalLatency := time.Since(retrievalStart)
	if err != nil {
		e.logger.Error("retrieval failed", "question", req.Question, "error", err)
		return e.failedAnswer(req, fmt.Sprintf("retrieval failed: %v", err))
	}

	if len(docs) == 0 {
		// Terminal: no grounding context means no generation call.
		return Answer{
			Question: req.Question,
			Mode:     ModeRAG,
			Text:     insufficientKnowledge,
			Metrics: Metrics{
				RetrievalLatency: retrievalLatency,
				TotalLatency:     time.Since(totalStart),
			},
		}
	}

	prompt := ragPrompt(formatContext(docs), req.Question)

	generationStart := time.Now()
	result, err := e.gen.Generate(ctx, prompt)
	generationLatency := time.Since(generationStart)
	if err != nil {
		e.logger.Error("generation failed", "question", req.Question, "error", err)
		return e.failedAnswer(req, fmt.Sprintf("generation failed: %v", err))
	}

	text := result.Text
	tokens := result.TokensUsed

	// Live augmentation: only grounded answers get the second pass, and
	// only when the question asks about the current session and live
	// data actually exists.
	if e.live != nil && live.IsLiveQuery(req.Question) {
		if blob := e.live.Context(ctx); blob != "" && blob != live.NoDataSentinel {
			augmented, err := e.gen.Generate(ctx, combinePrompt(text, blob, req.Question))
			if err != nil {
				e.logger.Warn("live augmentation failed, keeping grounded answer", "error", err)
			} else {
				text = augmented.Text
				tokens += augmented.TokensUsed
				generationLatency += augmented.Latency
			}
		}
	}

	var scoreSum float64
	for _, d := range docs {
		scoreSum += d.Score
	}

	return Answer{
		Success:     true,
		Question:    req.Question,
		Mode:        ModeRAG,
		Text:        text,
		Sources:     buildSources(docs),
		ContextUsed: len(docs),
		Metrics: Metrics{
			RetrievalLatency:   retrievalLatency,
			GenerationLatency:  generationLatency,
			TotalLatency:       time.Since(totalStart),
			Tokens:             tokens,
			DocumentsRetrieved: len(docs),
			AvgScore:           scoreSum / float64(len(docs)),
		},
	}
}

func (e *Engine) answerDirect(ctx context.Context, req Request) Answer {
	totalStart := time.Now()

	result, err := e.gen.Generate(ctx, directPrompt(req.Question))
	if err != nil {
		e.logger.Error("generation failed", "question", req.Question, "error", err)
		return e.failedAnswer(req, fmt.Sprintf("generation failed: %v", err))
	}

	return Answer{
		Success:  true,
		Question: req.Question,
		Mode:     ModeDirect,
		Text:     result.Text,
		Metrics: Metrics{
			GenerationLatency: result.Latency,
			TotalLatency:      time.Since(totalStart),
			Tokens:            result.TokensUsed,
		},
	}
}

// clipRunes caps s at limit runes, never cutting inside a multibyte
// character.
func clipRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// formatContext renders retrieved documents as labeled prompt sections.
func formatContext(docs []index.Document) string {
	parts := make([]string, 0, len(docs))
	for i, d := range docs {
		content := clipRunes(d.Content, contextDocLimit)
		if content != d.Content {
			content += "..."
		}
		title := d.Metadata["title"]
		if title == "" {
			title = "Unknown Source"
		}
		parts = append(parts, fmt.Sprintf("--- Source %d: %s (relevance: %.3f) ---\n%s",
			i+1, title, d.Score, content))
	}
	return strings.Join(parts, "\n\n")
}

func buildSources(docs []index.Document) []Source {
	sources := make([]Source, 0, len(docs))
	for _, d := range docs {
		excerpt := clipRunes(d.Content, excerptLimit)
		title := d.Metadata["title"]
		if title == "" {
			title = "Unknown"
		}
		url := d.Metadata["source"]
		if url == "" {
			url = "Unknown"
		}
		category := d.Metadata["category"]
		if category == "" {
			category = "general"
		}
		sources = append(sources, Source{
			Title:     title,
			URL:       url,
			Category:  category,
			Namespace: d.Namespace,
			Score:     d.Score,
			Excerpt:   excerpt,
		})
	}
	return sources
}

// Status reports component health and the effective configuration.
type Status struct {
	IndexConnected bool
	LLMConnected   bool
	TotalVectors   int
	Namespaces     map[string]int
	EmbeddingModel string
	LLMModel       string
	ChunkSize      int
	TopK           int
	ScoreThreshold float64
}

// Status probes the index and the generator and echoes the effective
// retrieval configuration.
func (e *Engine) Status(ctx context.Context) Status {
	status := Status{
		EmbeddingModel: e.cfg.EmbeddingModel,
		LLMModel:       e.gen.ModelName(),
		ChunkSize:      e.cfg.ChunkSize,
		TopK:           e.cfg.TopK,
		ScoreThreshold: e.cfg.ScoreThreshold,
	}

	if stats, err := e.index.Stats(ctx); err == nil {
		status.IndexConnected = true
		status.TotalVectors = stats.TotalRecords
		status.Namespaces = stats.Namespaces
	} else {
		e.logger.Warn("index status probe failed", "error", err)
	}

	if result, err := e.gen.Generate(ctx, "Respond with OK"); err == nil && result.Text != "" {
		status.LLMConnected = true
	} else if err != nil {
		e.logger.Warn("generator status probe failed", "error", err)
	}

	return status
}
