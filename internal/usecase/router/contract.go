package router

import (
	"context"
	"time"

	"github.com/answerdesk/supportrag/internal/domain"
)

// Searcher is one corpus store as the router sees it.
type Searcher interface {
	Search(query []float32, topK, nprobe int) ([]domain.SearchResult, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Recorder accumulates per-query observability data. It never influences routing.
type Recorder interface {
	Record(decision domain.RoutingDecision, confidence float64, latency time.Duration)
}
