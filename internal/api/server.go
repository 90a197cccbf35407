// Package api exposes the retrieval and ingestion services over a JSON
// HTTP API.
package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Engine      Engine     // Required
	Ingester    Ingester   // Optional: nil disables the ingest endpoint
	Evaluator   Evaluator  // Optional: nil disables the evaluate endpoint
	Index       IndexStats // Optional: nil disables the namespaces endpoint
	CORSOrigins []string   // Allowed origins for CORS
	TrustProxy  bool       // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)

	// Per-IP token bucket tuning. Zero values select the defaults:
	// 1 token/sec refill with a burst of 60.
	RatePerSecond float64
	RateBurst     int
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	qh := &queryHandler{engine: cfg.Engine, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", qh.query)
	mux.HandleFunc("POST /api/v1/compare", qh.compare)
	mux.HandleFunc("GET /api/v1/status", qh.status)

	if cfg.Ingester != nil {
		ih := &ingestHandler{ingester: cfg.Ingester, logger: logger}
		mux.HandleFunc("POST /api/v1/ingest", ih.ingest)
	}
	if cfg.Evaluator != nil {
		eh := &evalHandler{runner: cfg.Evaluator, logger: logger}
		mux.HandleFunc("GET /api/v1/evaluate", eh.evaluate)
	}
	if cfg.Index != nil {
		nh := &namespacesHandler{stats: cfg.Index, logger: logger}
		mux.HandleFunc("GET /api/v1/namespaces", nh.namespaces)
	}

	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	limiters := newClientLimiters(perSecond, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(limiters, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
