// Package chi is the HTTP surface. Handlers stay thin: decode, delegate to a
// use case, encode. No retrieval or routing logic lives here.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/answerdesk/supportrag/internal/domain"
	"github.com/answerdesk/supportrag/internal/stats"
	buildunit "github.com/answerdesk/supportrag/internal/usecase/build"
	healthuc "github.com/answerdesk/supportrag/internal/usecase/health"
	routeruc "github.com/answerdesk/supportrag/internal/usecase/router"
)

// Error response codes.
const (
	codeBadRequest        = "bad_request"
	codeUnauthorized      = "unauthorized"
	codeIndexNotBuilt     = "index_not_built"
	codeEmbeddingProvider = "embedding_provider_error"
	codeInternalError     = "internal_error"
)

// Router routes one query through both stores.
type Router interface {
	Route(ctx context.Context, req routeruc.Request) (routeruc.Response, error)
}

// Rebuilder re-ingests and re-indexes both corpora.
type Rebuilder interface {
	RebuildAll(ctx context.Context) (buildunit.Summary, error)
}

// StatsReader exposes aggregate query statistics.
type StatsReader interface {
	Snapshot() stats.Snapshot
}

// Server implements the HTTP API.
type Server struct {
	router    Router
	rebuilder Rebuilder
	stats     StatsReader
	health    *healthuc.Service
	logger    *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	router Router,
	rebuilder Rebuilder,
	statsReader StatsReader,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		router:    router,
		rebuilder: rebuilder,
		stats:     statsReader,
		health:    health,
		logger:    logger,
	}
}

// Register mounts all routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/query", s.Query)
	r.Post("/rebuild", s.Rebuild)
	r.Get("/stats", s.Stats)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// queryRequest is the POST /query body.
type queryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
	NProbe   int    `json:"nprobe"`
}

// queryResponse is the POST /query reply.
type queryResponse struct {
	QueryID           string            `json:"query_id"`
	Citations         []domain.Citation `json:"citations"`
	Source            string            `json:"source,omitempty"`
	Confidence        float64           `json:"confidence"`
	FallbackTriggered bool              `json:"fallback_triggered"`
	Escalated         bool              `json:"escalated"`
	LatencyMs         float64           `json:"latency_ms"`
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.router.Route(r.Context(), routeruc.Request{
		Query:  req.Question,
		TopK:   req.TopK,
		NProbe: req.NProbe,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		QueryID:           resp.QueryID,
		Citations:         resp.Citations,
		Source:            string(resp.Decision.Source),
		Confidence:        resp.Decision.Confidence(),
		FallbackTriggered: resp.Decision.FallbackTriggered,
		Escalated:         resp.Decision.Outcome == domain.OutcomeEscalated,
		LatencyMs:         float64(resp.Latency.Microseconds()) / 1000,
	})
}

// Rebuild handles POST /rebuild.
func (s *Server) Rebuild(w http.ResponseWriter, r *http.Request) {
	summary, err := s.rebuilder.RebuildAll(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyInput,
		domain.ErrEmptyCorpus,
		domain.ErrIndexNotBuilt,
		domain.ErrEmbeddingProvider,
		domain.ErrVectorDimMismatch,
		domain.ErrVersionMismatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)

	switch {
	case errors.Is(err, domain.ErrEmptyInput), errors.Is(err, domain.ErrEmptyCorpus):
		writeError(w, http.StatusBadRequest, codeBadRequest, msg)
	case errors.Is(err, domain.ErrIndexNotBuilt):
		writeError(w, http.StatusServiceUnavailable, codeIndexNotBuilt, msg)
	case errors.Is(err, domain.ErrEmbeddingProvider):
		writeError(w, http.StatusBadGateway, codeEmbeddingProvider, msg)
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
