package domain

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestAssembleCitations(t *testing.T) {
	results := []SearchResult{
		{
			Document: Document{
				ID:       "faq_00004",
				Text:     "Question: q\nAnswer: a",
				Category: "billing",
				Source:   SourcePrimary,
			},
			Similarity: 0.91,
			Rank:       1,
		},
		{
			Document: Document{
				ID:               "ticket_00002",
				Text:             "User Question: q\nAgent Response: a",
				Category:         "bugs",
				Source:           SourceSecondary,
				ResolutionStatus: "resolved",
			},
			Similarity: 0.72,
			Rank:       2,
		},
	}

	citations := AssembleCitations(results)
	if len(citations) != 2 {
		t.Fatalf("got %d citations, want 2", len(citations))
	}

	c := citations[0]
	if c.Rank != 1 || c.DocumentID != "faq_00004" || c.Similarity != 0.91 {
		t.Errorf("unexpected first citation: %+v", c)
	}
	if c.Source != SourcePrimary || c.Category != "billing" {
		t.Errorf("metadata lost: %+v", c)
	}
	if c.ResolutionStatus != "" {
		t.Errorf("primary citation carries resolution status %q", c.ResolutionStatus)
	}
	if c.Excerpt != "Question: q\nAnswer: a" {
		t.Errorf("Excerpt = %q", c.Excerpt)
	}

	if citations[1].ResolutionStatus != "resolved" {
		t.Errorf("ResolutionStatus = %q", citations[1].ResolutionStatus)
	}
}

func TestAssembleCitations_Empty(t *testing.T) {
	if got := AssembleCitations(nil); len(got) != 0 {
		t.Errorf("got %d citations from nil results", len(got))
	}
}

func TestAssembleCitations_ExcerptTruncated(t *testing.T) {
	long := strings.Repeat("x", 500)
	citations := AssembleCitations([]SearchResult{
		{Document: Document{ID: "faq_00000", Text: long, Source: SourcePrimary}, Similarity: 0.8},
	})

	got := citations[0].Excerpt
	if len(got) != excerptLimit+3 {
		t.Errorf("excerpt length = %d, want %d", len(got), excerptLimit+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("excerpt not marked truncated: %q", got[len(got)-10:])
	}
}

func TestAssembleCitations_ExcerptKeepsRunesIntact(t *testing.T) {
	// 3-byte runes that do not divide the byte limit evenly, so a byte-exact
	// cut would land inside a rune.
	long := strings.Repeat("支", 100)
	citations := AssembleCitations([]SearchResult{
		{Document: Document{ID: "faq_00000", Text: long, Source: SourcePrimary}, Similarity: 0.8},
	})

	got := citations[0].Excerpt
	if !utf8.ValidString(got) {
		t.Fatalf("excerpt is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("excerpt not marked truncated: %q", got)
	}
	body := strings.TrimSuffix(got, "...")
	if len(body) > excerptLimit {
		t.Errorf("excerpt body is %d bytes, limit %d", len(body), excerptLimit)
	}
	for _, r := range body {
		if r != '支' {
			t.Fatalf("excerpt contains mangled rune %q", r)
		}
	}
}

func TestSourceIsValid(t *testing.T) {
	if !SourcePrimary.IsValid() || !SourceSecondary.IsValid() {
		t.Error("known sources reported invalid")
	}
	if Source("tertiary").IsValid() {
		t.Error("unknown source reported valid")
	}
}
