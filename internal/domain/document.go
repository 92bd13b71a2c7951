package domain

// Source identifies which corpus a document belongs to.
type Source string

const (
	// SourcePrimary is the curated knowledge-base corpus, consulted first.
	SourcePrimary Source = "primary"
	// SourceSecondary is the resolved-tickets corpus, consulted on fallback.
	SourceSecondary Source = "secondary"
)

// IsValid reports whether s is a known corpus source.
func (s Source) IsValid() bool {
	return s == SourcePrimary || s == SourceSecondary
}

// Document is an immutable corpus record. Secondary-corpus documents additionally
// carry a resolution status; the Source discriminator tells the two shapes apart.
type Document struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	Category         string    `json:"category"`
	Source           Source    `json:"source"`
	ResolutionStatus string    `json:"resolution_status,omitempty"`
	Embedding        []float32 `json:"-"`
}

// SearchResult is a single ranked hit against one store. The document is a copy
// taken from the index generation the search ran against.
type SearchResult struct {
	Document   Document
	Similarity float64
	Rank       int
}
