// Package store owns one corpus and its built IVF index. Reads are lock-free:
// every rebuild produces a fresh immutable generation installed by an atomic
// pointer swap, so concurrent searches always observe a whole generation.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/answerdesk/supportrag/internal/domain"
	"github.com/answerdesk/supportrag/internal/index"
)

// generation is one immutable corpus snapshot plus its index. In-flight readers
// keep the generation they loaded alive until they return.
type generation struct {
	docs    []domain.Document
	index   *index.Index
	builtAt time.Time
}

// Store is one corpus slot. Safe for unlimited concurrent readers; rebuilds of
// the same slot are serialized by buildMu.
type Store struct {
	source  domain.Source
	params  index.BuildParams
	gen     atomic.Pointer[generation]
	buildMu sync.Mutex
}

// New creates an empty store for the given corpus source. Searching before the
// first successful Install returns ErrIndexNotBuilt.
func New(source domain.Source, params index.BuildParams) *Store {
	return &Store{source: source, params: params}
}

// Source returns the corpus source this store owns.
func (s *Store) Source() domain.Source { return s.source }

// Built reports whether a generation is installed.
func (s *Store) Built() bool { return s.gen.Load() != nil }

// Len returns the current document count, zero before the first build.
func (s *Store) Len() int {
	g := s.gen.Load()
	if g == nil {
		return 0
	}
	return len(g.docs)
}

// BuiltAt returns the install time of the current generation.
func (s *Store) BuiltAt() (time.Time, bool) {
	g := s.gen.Load()
	if g == nil {
		return time.Time{}, false
	}
	return g.builtAt, true
}

// ClusterCount returns the cluster count of the current generation.
func (s *Store) ClusterCount() int {
	g := s.gen.Load()
	if g == nil {
		return 0
	}
	return g.index.ClusterCount()
}

// Install builds a fresh index over docs (which must already carry embeddings)
// and atomically replaces the current generation. Cluster assignment is
// recomputed in full; there is no incremental mutation of an existing index.
func (s *Store) Install(docs []domain.Document) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if len(docs) == 0 {
		return fmt.Errorf("install %s store: %w", s.source, domain.ErrEmptyCorpus)
	}

	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		vectors[i] = d.Embedding
	}

	ix, err := index.Build(vectors, s.params)
	if err != nil {
		return fmt.Errorf("build %s index: %w", s.source, err)
	}

	s.install(docs, ix)
	return nil
}

// Search returns up to topK results in descending similarity, ties broken by
// lower document index. A topK larger than the corpus returns all documents
// ranked (subject to nprobe cluster coverage).
func (s *Store) Search(query []float32, topK, nprobe int) ([]domain.SearchResult, error) {
	g := s.gen.Load()
	if g == nil {
		return nil, fmt.Errorf("%s store: %w", s.source, domain.ErrIndexNotBuilt)
	}

	hits, err := g.index.Search(query, topK, nprobe)
	if err != nil {
		return nil, fmt.Errorf("search %s store: %w", s.source, err)
	}

	results := make([]domain.SearchResult, len(hits))
	for rank, h := range hits {
		results[rank] = domain.SearchResult{
			Document:   g.docs[h.Index],
			Similarity: h.Score,
			Rank:       rank + 1,
		}
	}
	return results, nil
}

func (s *Store) install(docs []domain.Document, ix *index.Index) {
	owned := make([]domain.Document, len(docs))
	copy(owned, docs)
	s.gen.Store(&generation{docs: owned, index: ix, builtAt: time.Now().UTC()})
}
