package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pitlane-dev/pitwall/internal/eval"
	"github.com/pitlane-dev/pitwall/internal/index"
	"github.com/pitlane-dev/pitwall/internal/ingest"
	"github.com/pitlane-dev/pitwall/internal/log"
	"github.com/pitlane-dev/pitwall/internal/rag"
)

type mockEngine struct {
	answer    rag.Answer
	lastReq   rag.Request
	panicNext bool
}

func (m *mockEngine) Query(_ context.Context, req rag.Request) rag.Answer {
	if m.panicNext {
		panic("engine exploded")
	}
	m.lastReq = req
	a := m.answer
	a.Question = req.Question
	a.Mode = req.Mode
	return a
}

func (m *mockEngine) Compare(_ context.Context, question string, _ int) rag.Comparison {
	return rag.Comparison{
		Question: question,
		RAG:      rag.Answer{Success: true, Question: question, Mode: rag.ModeRAG, Text: "grounded"},
		Direct:   rag.Answer{Success: true, Question: question, Mode: rag.ModeDirect, Text: "direct"},
	}
}

func (m *mockEngine) Status(context.Context) rag.Status {
	return rag.Status{
		IndexConnected: true,
		LLMConnected:   true,
		TotalVectors:   12,
		Namespaces:     map[string]int{"wikipedia": 12},
		EmbeddingModel: "gemini-embedding-001",
		LLMModel:       "gemini-2.5-flash",
		ChunkSize:      800,
		TopK:           5,
		ScoreThreshold: 0.7,
	}
}

type mockIngester struct {
	result  ingest.Result
	lastTgt string
}

func (m *mockIngester) Ingest(_ context.Context, target string, _ bool, _ []int) (ingest.Result, error) {
	m.lastTgt = target
	return m.result, nil
}

type mockEvaluator struct {
	report eval.Report
	runs   int
}

func (m *mockEvaluator) Run(context.Context) eval.Report {
	m.runs++
	return m.report
}

type mockStats struct {
	stats index.Stats
	err   error
}

func (m *mockStats) Stats(context.Context) (index.Stats, error) {
	return m.stats, m.err
}

func newTestServer(t *testing.T, engine Engine, ingester Ingester) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:   log.NewNop(),
		Engine:   engine,
		Ingester: ingester,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpoint(t *testing.T) {
	engine := &mockEngine{answer: rag.Answer{
		Success:     true,
		Text:        "Verstappen won.",
		ContextUsed: 2,
		Sources: []rag.Source{
			{Title: "2023 Results", URL: "https://example.org", Category: "race_results", Namespace: "ergast-results", Score: 0.9, Excerpt: "..."},
		},
	}}
	srv := newTestServer(t, engine, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query",
		`{"question":"Who won in 2023?","mode":"rag","top_k":3,"namespace_filter":"ergast-results"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if engine.lastReq.TopK != 3 || engine.lastReq.Namespace != "ergast-results" {
		t.Errorf("request not forwarded: %+v", engine.lastReq)
	}

	var resp answerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Answer != "Verstappen won." || resp.Mode != "rag" {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Title != "2023 Results" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestQueryMissingQuestion(t *testing.T) {
	srv := newTestServer(t, &mockEngine{}, nil)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query", `{"mode":"rag"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestQueryInvalidJSON(t *testing.T) {
	srv := newTestServer(t, &mockEngine{}, nil)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query", `{question}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestQueryCompareModeRedirected(t *testing.T) {
	srv := newTestServer(t, &mockEngine{}, nil)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query", `{"question":"q","mode":"compare"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "compare") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestQueryEngineFailure(t *testing.T) {
	engine := &mockEngine{answer: rag.Answer{Err: "generation failed: quota"}}
	srv := newTestServer(t, engine, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query", `{"question":"q"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCompareEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockEngine{}, nil)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/compare", `{"question":"Who won?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp compareResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RAG.Answer != "grounded" || resp.Direct.Answer != "direct" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockEngine{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.IndexConnected || resp.TotalVectors != 12 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Config.LLMModel != "gemini-2.5-flash" || resp.Config.TopK != 5 {
		t.Errorf("config = %+v", resp.Config)
	}
}

func TestIngestEndpoint(t *testing.T) {
	ingester := &mockIngester{result: ingest.Result{
		Success:       true,
		Documents:     3,
		TotalChunks:   40,
		TotalUpserted: 40,
		Groups:        []ingest.GroupResult{{Namespace: "wikipedia", Documents: 3, Chunks: 40, Upserted: 40}},
	}}
	srv := newTestServer(t, &mockEngine{}, ingester)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/ingest", `{"target":"wikipedia","force_refresh":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if ingester.lastTgt != "wikipedia" {
		t.Errorf("target = %q", ingester.lastTgt)
	}

	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.VectorsUpserted != 40 || len(resp.Groups) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestIngestDisabledWithoutIngester(t *testing.T) {
	srv := newTestServer(t, &mockEngine{}, nil)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/ingest", `{"target":"all"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	evaluator := &mockEvaluator{report: eval.Report{
		TotalQuestions:  2,
		Successful:      2,
		AvgKeywordScore: 0.833,
		AvgRetrieval:    120 * time.Millisecond,
		AvgSources:      3.5,
		Results: []eval.QuestionResult{
			{Question: "q1", Category: "teams", KeywordScore: 1, SourcesFound: 4, Success: true},
			{Question: "q2", Category: "technical", KeywordScore: 0.667, SourcesFound: 3, Success: true},
		},
	}}
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Engine:    &mockEngine{},
		Evaluator: evaluator,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluate", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if evaluator.runs != 1 {
		t.Errorf("runs = %d, want 1", evaluator.runs)
	}
	var resp evaluateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalQuestions != 2 || resp.AvgKeywordScore != 0.833 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.AvgRetrievalMS != 120 {
		t.Errorf("AvgRetrievalMS = %v, want 120", resp.AvgRetrievalMS)
	}
	if len(resp.Results) != 2 || resp.Results[1].KeywordScore != 0.667 {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestEvaluateDisabledWithoutEvaluator(t *testing.T) {
	srv := newTestServer(t, &mockEngine{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluate", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNamespacesEndpoint(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger: log.NewNop(),
		Engine: &mockEngine{},
		Index: &mockStats{stats: index.Stats{
			TotalRecords: 52,
			Dimension:    768,
			Namespaces:   map[string]int{"wikipedia": 40, "ergast-results": 12},
		}},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/namespaces", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp namespacesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalVectors != 52 || resp.Dimension != 768 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Namespaces["wikipedia"] != 40 {
		t.Errorf("namespaces = %+v", resp.Namespaces)
	}
}

func TestNamespacesStatsFailure(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger: log.NewNop(),
		Engine: &mockEngine{},
		Index:  &mockStats{err: errors.New("connection refused")},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/namespaces", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockEngine{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &mockEngine{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/query", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPanicRecovery(t *testing.T) {
	engine := &mockEngine{panicNext: true}
	srv := newTestServer(t, engine, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/query", `{"question":"q"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "internal_error") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestRateLimit(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Engine:    &mockEngine{},
		RateBurst: 2,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last)
	}
}

func TestClientLimitersBurstExhaustion(t *testing.T) {
	limiters := newClientLimiters(0.001, 2)
	if !limiters.take("203.0.113.7") || !limiters.take("203.0.113.7") {
		t.Fatal("burst tokens should be allowed")
	}
	if limiters.take("203.0.113.7") {
		t.Error("take beyond the burst should be denied")
	}
	if !limiters.take("203.0.113.8") {
		t.Error("another client should have its own bucket")
	}
}

func TestClientLimitersSweep(t *testing.T) {
	limiters := newClientLimiters(1, 2)
	limiters.take("203.0.113.7")
	limiters.take("203.0.113.8")
	if len(limiters.clients) != 2 {
		t.Fatalf("tracked clients = %d, want 2", len(limiters.clients))
	}

	// Age one client past eviction and force the next take to sweep.
	limiters.clients["203.0.113.7"].lastSeen = time.Now().Add(-limiterIdleEviction - time.Minute)
	limiters.nextSweep = time.Now().Add(-time.Second)

	limiters.take("203.0.113.8")
	if _, ok := limiters.clients["203.0.113.7"]; ok {
		t.Error("idle client was not evicted")
	}
	if _, ok := limiters.clients["203.0.113.8"]; !ok {
		t.Error("active client must survive the sweep")
	}
}
