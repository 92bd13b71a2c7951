package domain

import "errors"

var (
	// ErrEmptyInput signals blank or whitespace-only text handed to the embedder.
	ErrEmptyInput = errors.New("empty input")
	// ErrEmptyCorpus signals an index build over zero documents.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrIndexNotBuilt signals a search attempted before any successful build.
	ErrIndexNotBuilt = errors.New("index not built")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrVersionMismatch signals persisted index artifacts inconsistent with the current schema.
	ErrVersionMismatch = errors.New("index artifact version mismatch")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
)
