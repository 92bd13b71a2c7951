package domain

import (
	"fmt"
	"unicode/utf8"
)

// excerptLimit caps the citation excerpt length.
const excerptLimit = 200

// Citation is the caller-facing record for one retrieved document.
type Citation struct {
	Rank             int     `json:"rank"`
	DocumentID       string  `json:"document_id"`
	Similarity       float64 `json:"similarity"`
	Source           Source  `json:"source"`
	Category         string  `json:"category"`
	ResolutionStatus string  `json:"resolution_status,omitempty"`
	Excerpt          string  `json:"excerpt"`
}

// AssembleCitations converts ranked search results into citations. Results are
// expected pre-ranked; ranks are renumbered 1..n for the caller.
func AssembleCitations(results []SearchResult) []Citation {
	citations := make([]Citation, len(results))
	for i, r := range results {
		citations[i] = Citation{
			Rank:             i + 1,
			DocumentID:       r.Document.ID,
			Similarity:       r.Similarity,
			Source:           r.Document.Source,
			Category:         r.Document.Category,
			ResolutionStatus: r.Document.ResolutionStatus,
			Excerpt:          excerpt(r.Document.Text),
		}
	}
	return citations
}

func excerpt(text string) string {
	if len(text) <= excerptLimit {
		return text
	}
	// Back off to a rune boundary so the cut never splits a multi-byte rune.
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return fmt.Sprintf("%s...", text[:cut])
}
