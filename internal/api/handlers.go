package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pitlane-dev/pitwall/internal/eval"
	"github.com/pitlane-dev/pitwall/internal/index"
	"github.com/pitlane-dev/pitwall/internal/ingest"
	"github.com/pitlane-dev/pitwall/internal/rag"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20 // 1 MiB

// Engine answers questions. Satisfied by *rag.Engine.
type Engine interface {
	Query(ctx context.Context, req rag.Request) rag.Answer
	Compare(ctx context.Context, question string, topK int) rag.Comparison
	Status(ctx context.Context) rag.Status
}

// Ingester runs ingestion. Satisfied by *ingest.Service.
type Ingester interface {
	Ingest(ctx context.Context, target string, forceRefresh bool, years []int) (ingest.Result, error)
}

// Evaluator runs the scored question suite. Satisfied by *eval.Runner.
type Evaluator interface {
	Run(ctx context.Context) eval.Report
}

// IndexStats reports index contents. Satisfied by *index.Store.
type IndexStats interface {
	Stats(ctx context.Context) (index.Stats, error)
}

// Wire types. Field names follow the JSON conventions of the public API.

type queryRequest struct {
	Question        string `json:"question"`
	Mode            string `json:"mode"`
	TopK            int    `json:"top_k"`
	NamespaceFilter string `json:"namespace_filter"`
}

type sourceDocument struct {
	Title     string  `json:"title"`
	Source    string  `json:"source"`
	Category  string  `json:"category"`
	Namespace string  `json:"namespace"`
	Score     float64 `json:"score"`
	Excerpt   string  `json:"excerpt"`
}

type metricsData struct {
	RetrievalLatencyMS  float64 `json:"retrieval_latency_ms"`
	GenerationLatencyMS float64 `json:"generation_latency_ms"`
	TotalLatencyMS      float64 `json:"total_latency_ms"`
	TokensEstimated     int32   `json:"tokens_estimated"`
	DocumentsRetrieved  int     `json:"documents_retrieved"`
	AvgSimilarityScore  float64 `json:"avg_similarity_score"`
}

type answerResponse struct {
	Success     bool             `json:"success"`
	Question    string           `json:"question"`
	Mode        string           `json:"mode"`
	Answer      string           `json:"answer"`
	Sources     []sourceDocument `json:"sources"`
	ContextUsed int              `json:"context_used"`
	Metrics     metricsData      `json:"metrics"`
	Error       string           `json:"error,omitempty"`
}

type compareResponse struct {
	Question string         `json:"question"`
	RAG      answerResponse `json:"rag_response"`
	Direct   answerResponse `json:"direct_response"`
}

type ingestRequest struct {
	Target       string `json:"target"`
	ForceRefresh bool   `json:"force_refresh"`
	Years        []int  `json:"years"`
}

type ingestGroupResult struct {
	Namespace string `json:"namespace"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Upserted  int    `json:"upserted"`
	Error     string `json:"error,omitempty"`
}

type ingestResponse struct {
	Success         bool                `json:"success"`
	Documents       int                 `json:"documents"`
	ChunksCreated   int                 `json:"chunks_created"`
	VectorsUpserted int                 `json:"vectors_upserted"`
	DurationSeconds float64             `json:"duration_seconds"`
	Groups          []ingestGroupResult `json:"groups"`
}

type evalQuestionResult struct {
	Question         string  `json:"question"`
	Category         string  `json:"category"`
	RAGAnswerExcerpt string  `json:"rag_answer_excerpt"`
	KeywordScore     float64 `json:"keyword_score"`
	SourcesFound     int     `json:"sources_found"`
	AvgSimilarity    float64 `json:"avg_similarity"`
	RetrievalMS      float64 `json:"retrieval_ms"`
	GenerationMS     float64 `json:"generation_ms"`
	TotalMS          float64 `json:"total_ms"`
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
}

type evaluateResponse struct {
	TotalQuestions     int                  `json:"total_questions"`
	Successful         int                  `json:"successful"`
	Failed             int                  `json:"failed"`
	AvgKeywordScore    float64              `json:"avg_keyword_score"`
	AvgRetrievalMS     float64              `json:"avg_retrieval_ms"`
	AvgGenerationMS    float64              `json:"avg_generation_ms"`
	AvgSourcesPerQuery float64              `json:"avg_sources_per_query"`
	Results            []evalQuestionResult `json:"results"`
}

type namespacesResponse struct {
	TotalVectors int            `json:"total_vectors"`
	Dimension    int            `json:"dimension"`
	Namespaces   map[string]int `json:"namespaces"`
}

type statusResponse struct {
	IndexConnected bool           `json:"index_connected"`
	LLMConnected   bool           `json:"llm_connected"`
	TotalVectors   int            `json:"total_vectors"`
	Namespaces     map[string]int `json:"namespaces"`
	Config         struct {
		EmbeddingModel      string  `json:"embedding_model"`
		LLMModel            string  `json:"llm_model"`
		ChunkSize           int     `json:"chunk_size"`
		TopK                int     `json:"top_k"`
		SimilarityThreshold float64 `json:"similarity_threshold"`
	} `json:"config"`
}

func toAnswerResponse(a rag.Answer) answerResponse {
	sources := make([]sourceDocument, 0, len(a.Sources))
	for _, s := range a.Sources {
		sources = append(sources, sourceDocument{
			Title:     s.Title,
			Source:    s.URL,
			Category:  s.Category,
			Namespace: s.Namespace,
			Score:     s.Score,
			Excerpt:   s.Excerpt,
		})
	}
	return answerResponse{
		Success:     a.Success,
		Question:    a.Question,
		Mode:        string(a.Mode),
		Answer:      a.Text,
		Sources:     sources,
		ContextUsed: a.ContextUsed,
		Metrics: metricsData{
			RetrievalLatencyMS:  millis(a.Metrics.RetrievalLatency),
			GenerationLatencyMS: millis(a.Metrics.GenerationLatency),
			TotalLatencyMS:      millis(a.Metrics.TotalLatency),
			TokensEstimated:     a.Metrics.Tokens,
			DocumentsRetrieved:  a.Metrics.DocumentsRetrieved,
			AvgSimilarityScore:  a.Metrics.AvgScore,
		},
		Error: a.Err,
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

type queryHandler struct {
	engine Engine
	logger *slog.Logger
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return false
	}
	return true
}

func (h *queryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}
	if req.Mode == string(rag.ModeCompare) {
		writeError(w, http.StatusBadRequest, "wrong_endpoint", "use /api/v1/compare for comparison mode")
		return
	}

	answer := h.engine.Query(r.Context(), rag.Request{
		Question:  req.Question,
		Mode:      rag.Mode(req.Mode),
		TopK:      req.TopK,
		Namespace: req.NamespaceFilter,
	})

	status := http.StatusOK
	if answer.Err != "" {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, toAnswerResponse(answer))
}

func (h *queryHandler) compare(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}

	cmp := h.engine.Compare(r.Context(), req.Question, req.TopK)
	writeJSON(w, http.StatusOK, compareResponse{
		Question: cmp.Question,
		RAG:      toAnswerResponse(cmp.RAG),
		Direct:   toAnswerResponse(cmp.Direct),
	})
}

func (h *queryHandler) status(w http.ResponseWriter, r *http.Request) {
	s := h.engine.Status(r.Context())

	var resp statusResponse
	resp.IndexConnected = s.IndexConnected
	resp.LLMConnected = s.LLMConnected
	resp.TotalVectors = s.TotalVectors
	resp.Namespaces = s.Namespaces
	if resp.Namespaces == nil {
		resp.Namespaces = map[string]int{}
	}
	resp.Config.EmbeddingModel = s.EmbeddingModel
	resp.Config.LLMModel = s.LLMModel
	resp.Config.ChunkSize = s.ChunkSize
	resp.Config.TopK = s.TopK
	resp.Config.SimilarityThreshold = s.ScoreThreshold

	writeJSON(w, http.StatusOK, resp)
}

type ingestHandler struct {
	ingester Ingester
	logger   *slog.Logger
}

func (h *ingestHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.ingester.Ingest(r.Context(), req.Target, req.ForceRefresh, req.Years)
	if err != nil {
		h.logger.Error("ingestion failed", "target", req.Target, "error", err)
		writeError(w, http.StatusBadGateway, "ingestion_failed", err.Error())
		return
	}

	groups := make([]ingestGroupResult, 0, len(result.Groups))
	for _, g := range result.Groups {
		gr := ingestGroupResult{
			Namespace: g.Namespace,
			Documents: g.Documents,
			Chunks:    g.Chunks,
			Upserted:  g.Upserted,
		}
		if g.Err != nil {
			gr.Error = g.Err.Error()
		}
		groups = append(groups, gr)
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Success:         result.Success,
		Documents:       result.Documents,
		ChunksCreated:   result.TotalChunks,
		VectorsUpserted: result.TotalUpserted,
		DurationSeconds: result.Elapsed.Seconds(),
		Groups:          groups,
	})
}

type evalHandler struct {
	runner Evaluator
	logger *slog.Logger
}

func (h *evalHandler) evaluate(w http.ResponseWriter, r *http.Request) {
	report := h.runner.Run(r.Context())

	results := make([]evalQuestionResult, 0, len(report.Results))
	for _, res := range report.Results {
		results = append(results, evalQuestionResult{
			Question:         res.Question,
			Category:         res.Category,
			RAGAnswerExcerpt: res.AnswerExcerpt,
			KeywordScore:     res.KeywordScore,
			SourcesFound:     res.SourcesFound,
			AvgSimilarity:    res.AvgScore,
			RetrievalMS:      millis(res.Retrieval),
			GenerationMS:     millis(res.Generation),
			TotalMS:          millis(res.Total),
			Success:          res.Success,
			Error:            res.Err,
		})
	}

	writeJSON(w, http.StatusOK, evaluateResponse{
		TotalQuestions:     report.TotalQuestions,
		Successful:         report.Successful,
		Failed:             report.Failed,
		AvgKeywordScore:    report.AvgKeywordScore,
		AvgRetrievalMS:     millis(report.AvgRetrieval),
		AvgGenerationMS:    millis(report.AvgGeneration),
		AvgSourcesPerQuery: report.AvgSources,
		Results:            results,
	})
}

type namespacesHandler struct {
	stats  IndexStats
	logger *slog.Logger
}

func (h *namespacesHandler) namespaces(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.Error("namespace stats failed", "error", err)
		writeError(w, http.StatusBadGateway, "stats_failed", err.Error())
		return
	}

	namespaces := stats.Namespaces
	if namespaces == nil {
		namespaces = map[string]int{}
	}
	writeJSON(w, http.StatusOK, namespacesResponse{
		TotalVectors: stats.TotalRecords,
		Dimension:    stats.Dimension,
		Namespaces:   namespaces,
	})
}

// health is a simple health check endpoint for Docker/Kubernetes probes.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
