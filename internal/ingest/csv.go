// Package ingest loads the two raw corpora from CSV files. Loaders produce
// documents without embeddings; the build service embeds them.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/answerdesk/supportrag/internal/domain"
)

// Primary knowledge-base CSV columns.
const (
	colQuestion = "question"
	colAnswer   = "answer"
	colCategory = "category"
)

// Secondary resolved-tickets CSV columns.
const (
	colUserQuestion     = "user_question"
	colAgentResponse    = "agent_response"
	colResolutionStatus = "resolution_status"
)

// LoadPrimary reads the knowledge-base corpus (question,answer[,category]).
// Rows with blank question or answer are skipped with a warning, not fatal.
func LoadPrimary(path string, logger *zap.Logger) ([]domain.Document, error) {
	rows, header, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, colQuestion, colAnswer); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	docs := make([]domain.Document, 0, len(rows))
	for i, row := range rows {
		question := strings.TrimSpace(row[header[colQuestion]])
		answer := strings.TrimSpace(row[header[colAnswer]])
		if question == "" || answer == "" {
			logger.Warn("skipping incomplete knowledge-base row",
				zap.String("file", path), zap.Int("row", i+2))
			continue
		}
		docs = append(docs, domain.Document{
			ID:       fmt.Sprintf("faq_%05d", len(docs)),
			Text:     fmt.Sprintf("Question: %s\nAnswer: %s", question, answer),
			Category: column(row, header, colCategory, "General"),
			Source:   domain.SourcePrimary,
		})
	}
	logger.Info("loaded primary corpus", zap.String("file", path), zap.Int("documents", len(docs)))
	return docs, nil
}

// LoadSecondary reads the resolved-tickets corpus
// (user_question,agent_response[,resolution_status][,category]).
func LoadSecondary(path string, logger *zap.Logger) ([]domain.Document, error) {
	rows, header, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, colUserQuestion, colAgentResponse); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	docs := make([]domain.Document, 0, len(rows))
	for i, row := range rows {
		question := strings.TrimSpace(row[header[colUserQuestion]])
		response := strings.TrimSpace(row[header[colAgentResponse]])
		if question == "" || response == "" {
			logger.Warn("skipping incomplete ticket row",
				zap.String("file", path), zap.Int("row", i+2))
			continue
		}
		docs = append(docs, domain.Document{
			ID:               fmt.Sprintf("ticket_%05d", len(docs)),
			Text:             fmt.Sprintf("User Question: %s\nAgent Response: %s", question, response),
			Category:         column(row, header, colCategory, "General"),
			Source:           domain.SourceSecondary,
			ResolutionStatus: column(row, header, colResolutionStatus, "unknown"),
		})
	}
	logger.Info("loaded secondary corpus", zap.String("file", path), zap.Int("documents", len(docs)))
	return docs, nil
}

// readAll returns all data rows and a lower-cased header name -> column index map.
// Rows with the wrong field count are dropped by the csv reader configuration.
func readAll(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	headerRow, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row (bad quoting, wrong field count): skip it.
			continue
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func requireColumns(header map[string]int, names ...string) error {
	for _, name := range names {
		if _, ok := header[name]; !ok {
			return fmt.Errorf("missing required column %q", name)
		}
	}
	return nil
}

func column(row []string, header map[string]int, name, fallback string) string {
	i, ok := header[name]
	if !ok || i >= len(row) {
		return fallback
	}
	if v := strings.TrimSpace(row[i]); v != "" {
		return v
	}
	return fallback
}
