// Package router routes queries between the primary and secondary stores: embed
// once, search the primary, fall back to the secondary when the primary's top
// similarity misses the confidence threshold, escalate when both miss it.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/answerdesk/supportrag/internal/domain"
	"github.com/answerdesk/supportrag/internal/logger"
)

// Request parameter defaults and limits.
const (
	DefaultTopK   = 3
	MaxTopK       = 10
	DefaultNProbe = 4
)

// Params tunes routing. Threshold is the single deployment-wide confidence
// bar; it is never derived per query. Zero TopK/NProbe fall back to defaults.
type Params struct {
	Threshold float64
	TopK      int
	NProbe    int
}

func (p Params) withDefaults() Params {
	if p.TopK <= 0 {
		p.TopK = DefaultTopK
	}
	if p.TopK > MaxTopK {
		p.TopK = MaxTopK
	}
	if p.NProbe <= 0 {
		p.NProbe = DefaultNProbe
	}
	return p
}

// Service routes one query through both stores.
type Service struct {
	primary   Searcher
	secondary Searcher
	embed     Embedder
	recorder  Recorder
	params    Params
}

// New creates a query router. recorder may be nil.
func New(primary, secondary Searcher, embed Embedder, params Params, recorder Recorder) *Service {
	return &Service{
		primary:   primary,
		secondary: secondary,
		embed:     embed,
		recorder:  recorder,
		params:    params.withDefaults(),
	}
}

// Request is one routed query. Zero TopK/NProbe fall back to defaults.
type Request struct {
	Query  string
	TopK   int
	NProbe int
}

// Response carries the ranked citations and the routing decision. An escalated
// query has Outcome == OutcomeEscalated and no citations.
type Response struct {
	QueryID   string
	Citations []domain.Citation
	Decision  domain.RoutingDecision
	Latency   time.Duration
}

// searchOutcome is one store branch's result, kept separate so the fallback
// policy (not the executor) decides which failures matter.
type searchOutcome struct {
	results []domain.SearchResult
	err     error
}

// Route executes the query. Both stores are searched concurrently to hide
// latency; the decision is evaluated only after both branches join, and is
// identical to what sequential primary-then-secondary execution would produce.
func (s *Service) Route(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	queryID := uuid.NewString()
	log := logger.FromContext(ctx).With(zap.String("query_id", queryID))

	if err := domain.ValidateInput(req.Query); err != nil {
		return Response{}, fmt.Errorf("route query: %w", err)
	}
	topK := s.normalizeTopK(req.TopK)
	nprobe := req.NProbe
	if nprobe <= 0 {
		nprobe = s.params.NProbe
	}

	emb, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		return Response{}, fmt.Errorf("embed query: %w", err)
	}

	primary, secondary := s.searchBoth(ctx, emb.Embedding, topK, nprobe)

	if primary.err != nil {
		return Response{}, fmt.Errorf("primary search: %w", primary.err)
	}

	decision := domain.RoutingDecision{PrimaryTopScore: topScore(primary.results)}

	if decision.PrimaryTopScore >= s.params.Threshold {
		decision.Outcome = domain.OutcomeAnswered
		decision.Source = domain.SourcePrimary
		// The prefetched secondary branch is discarded; its failure, if any,
		// is non-fatal once the primary met the threshold.
		if secondary.err != nil {
			log.Warn("discarded secondary search failure", zap.Error(secondary.err))
		}
		return s.respond(queryID, primary.results, decision, start, log)
	}

	decision.FallbackTriggered = true
	if secondary.err != nil {
		return Response{}, fmt.Errorf("secondary search: %w", secondary.err)
	}
	decision.SecondarySearched = true
	decision.SecondaryTopScore = topScore(secondary.results)

	if decision.SecondaryTopScore >= s.params.Threshold {
		decision.Outcome = domain.OutcomeAnswered
		decision.Source = domain.SourceSecondary
		return s.respond(queryID, secondary.results, decision, start, log)
	}

	// Neither store met the threshold: a normal terminal outcome, not an error.
	decision.Outcome = domain.OutcomeEscalated
	return s.respond(queryID, nil, decision, start, log)
}

// searchBoth dispatches both store searches concurrently and joins them. Branch
// errors are captured per branch, never returned through the group, so one
// branch's failure cannot suppress the other's valid result.
func (s *Service) searchBoth(ctx context.Context, query []float32, topK, nprobe int) (primary, secondary searchOutcome) {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		primary.results, primary.err = s.primary.Search(query, topK, nprobe)
		return nil
	})
	g.Go(func() error {
		secondary.results, secondary.err = s.secondary.Search(query, topK, nprobe)
		return nil
	})
	_ = g.Wait()
	return primary, secondary
}

func (s *Service) respond(
	queryID string,
	results []domain.SearchResult,
	decision domain.RoutingDecision,
	start time.Time,
	log *zap.Logger,
) (Response, error) {
	latency := time.Since(start)
	confidence := decision.Confidence()

	if s.recorder != nil {
		s.recorder.Record(decision, confidence, latency)
	}

	log.Info("query_routed",
		zap.String("outcome", string(decision.Outcome)),
		zap.String("source", string(decision.Source)),
		zap.Bool("fallback_triggered", decision.FallbackTriggered),
		zap.Float64("confidence", confidence),
		zap.Duration("latency", latency),
		zap.Int("citations", len(results)),
	)

	return Response{
		QueryID:   queryID,
		Citations: domain.AssembleCitations(results),
		Decision:  decision,
		Latency:   latency,
	}, nil
}

func topScore(results []domain.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	return results[0].Similarity
}

func (s *Service) normalizeTopK(topK int) int {
	if topK <= 0 {
		return s.params.TopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}
