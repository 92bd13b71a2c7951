// Package build turns a raw corpus into an installed store generation: chunked
// batch embedding on a worker pool, then a full index rebuild and atomic install.
package build

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/answerdesk/supportrag/internal/domain"
)

// DefaultChunkSize is how many texts go into one embedding API call.
const DefaultChunkSize = 32

// Service embeds corpora and installs them into store slots.
type Service struct {
	embed     Embedder
	chunkSize int
	poolSize  int
	logger    *zap.Logger
}

// New creates a build service. Zero chunkSize/poolSize fall back to
// DefaultChunkSize and half the CPU count.
func New(embed Embedder, chunkSize, poolSize int, logger *zap.Logger) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if poolSize <= 0 {
		poolSize = runtime.NumCPU() / 2
		if poolSize < 1 {
			poolSize = 1
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embed: embed, chunkSize: chunkSize, poolSize: poolSize, logger: logger}
}

// Rebuild embeds the corpus and installs it into the target store. The corpus
// replaces the store's previous generation wholesale; nothing is mutated in
// place. Documents with blank text fail the build up front.
func (s *Service) Rebuild(ctx context.Context, target Target, corpus []domain.Document) error {
	if len(corpus) == 0 {
		return fmt.Errorf("rebuild %s store: %w", target.Source(), domain.ErrEmptyCorpus)
	}

	texts := make([]string, len(corpus))
	for i, d := range corpus {
		if err := domain.ValidateInput(d.Text); err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
		texts[i] = d.Text
	}

	start := time.Now()
	embeddings, err := s.embedAll(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s corpus: %w", target.Source(), err)
	}

	docs := make([]domain.Document, len(corpus))
	copy(docs, corpus)
	for i := range docs {
		docs[i].Embedding = embeddings[i]
	}

	if err := target.Install(docs); err != nil {
		return err
	}

	s.logger.Info("corpus rebuilt",
		zap.String("source", string(target.Source())),
		zap.Int("documents", len(docs)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// embedAll splits texts into chunks and embeds them concurrently on a bounded
// goroutine pool. Each chunk writes into its own slice range, so output order
// matches input order regardless of completion order. The first chunk failure
// fails the whole build.
func (s *Service) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("create embed pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	for offset := 0; offset < len(texts); offset += s.chunkSize {
		end := offset + s.chunkSize
		if end > len(texts) {
			end = len(texts)
		}
		chunkStart, chunkEnd := offset, end

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				fail(ctx.Err())
				return
			}
			res, embErr := s.embed.BatchEmbed(ctx, texts[chunkStart:chunkEnd])
			if embErr != nil {
				fail(fmt.Errorf("chunk [%d:%d]: %w", chunkStart, chunkEnd, embErr))
				return
			}
			if len(res.Embeddings) != chunkEnd-chunkStart {
				fail(fmt.Errorf("chunk [%d:%d]: got %d embeddings for %d texts",
					chunkStart, chunkEnd, len(res.Embeddings), chunkEnd-chunkStart))
				return
			}
			copy(embeddings[chunkStart:chunkEnd], res.Embeddings)
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit chunk: %w", submitErr))
			break
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return embeddings, nil
}
