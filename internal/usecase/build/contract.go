package build

import (
	"context"

	"github.com/answerdesk/supportrag/internal/domain"
)

// Embedder vectorizes document texts in batches.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Target is a store slot that accepts a freshly embedded corpus.
type Target interface {
	Install(docs []domain.Document) error
	Source() domain.Source
}
