package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/answerdesk/supportrag/internal/domain"
	"github.com/answerdesk/supportrag/internal/index"
	"github.com/answerdesk/supportrag/internal/store"
)

func writeCorpusFiles(t *testing.T) CorpusPaths {
	t.Helper()
	dir := t.TempDir()

	faq := "question,answer,category\n" +
		"How do I reset my password? 1,Use the reset link. 2,account\n" +
		"Where is my invoice? 3,Under Billing. 4,billing\n" +
		"Do you offer refunds? 5,Yes within 30 days. 6,billing\n"
	tickets := "user_question,agent_response,resolution_status\n" +
		"Charged twice. 7,Refunded. 8,resolved\n" +
		"App crashes. 9,Reinstall fixed it. 10,resolved\n"

	primary := filepath.Join(dir, "faq.csv")
	secondary := filepath.Join(dir, "tickets.csv")
	if err := os.WriteFile(primary, []byte(faq), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(secondary, []byte(tickets), 0o644); err != nil {
		t.Fatal(err)
	}
	return CorpusPaths{Primary: primary, Secondary: secondary}
}

func newSlots() (*store.Store, *store.Store) {
	params := index.BuildParams{Seed: 1}
	return store.New(domain.SourcePrimary, params), store.New(domain.SourceSecondary, params)
}

func TestRebuildAll(t *testing.T) {
	paths := writeCorpusFiles(t)
	artifacts := filepath.Join(t.TempDir(), "index")
	primary, secondary := newSlots()

	svc := New(&stubBatchEmbedder{}, 2, 2, zap.NewNop())
	p := NewPipeline(svc, primary, secondary, paths, artifacts, zap.NewNop())

	summary, err := p.RebuildAll(context.Background())
	if err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}

	if summary.PrimaryDocuments != 3 {
		t.Errorf("primary documents = %d, want 3", summary.PrimaryDocuments)
	}
	if summary.SecondaryDocuments != 2 {
		t.Errorf("secondary documents = %d, want 2", summary.SecondaryDocuments)
	}
	if !primary.Built() || !secondary.Built() {
		t.Error("stores not built after rebuild")
	}

	// Snapshots landed on disk for both stores.
	for _, source := range []string{"primary", "secondary"} {
		if _, err := os.Stat(filepath.Join(artifacts, source, "manifest.json")); err != nil {
			t.Errorf("missing %s snapshot: %v", source, err)
		}
	}
}

func TestRebuildAll_MissingCorpusFile(t *testing.T) {
	paths := writeCorpusFiles(t)
	paths.Secondary = filepath.Join(t.TempDir(), "nope.csv")
	primary, secondary := newSlots()

	svc := New(&stubBatchEmbedder{}, 2, 2, zap.NewNop())
	p := NewPipeline(svc, primary, secondary, paths, "", zap.NewNop())

	if _, err := p.RebuildAll(context.Background()); err == nil {
		t.Fatal("expected error for missing secondary corpus")
	}

	// The primary store was already rebuilt and keeps serving.
	if !primary.Built() {
		t.Error("primary store lost its generation")
	}
	if secondary.Built() {
		t.Error("secondary store built from missing file")
	}
}

func TestRestoreOrRebuild_UsesSnapshots(t *testing.T) {
	paths := writeCorpusFiles(t)
	artifacts := filepath.Join(t.TempDir(), "index")

	// First process: rebuild from scratch and persist.
	{
		primary, secondary := newSlots()
		svc := New(&stubBatchEmbedder{}, 2, 2, zap.NewNop())
		p := NewPipeline(svc, primary, secondary, paths, artifacts, zap.NewNop())
		if _, err := p.RebuildAll(context.Background()); err != nil {
			t.Fatalf("RebuildAll: %v", err)
		}
	}

	// Second process: snapshots restore without touching the embedder.
	embedder := &stubBatchEmbedder{}
	primary, secondary := newSlots()
	svc := New(embedder, 2, 2, zap.NewNop())
	p := NewPipeline(svc, primary, secondary, paths, artifacts, zap.NewNop())

	if err := p.RestoreOrRebuild(context.Background()); err != nil {
		t.Fatalf("RestoreOrRebuild: %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times during restore", embedder.calls)
	}
	if primary.Len() != 3 || secondary.Len() != 2 {
		t.Errorf("restored sizes %d/%d, want 3/2", primary.Len(), secondary.Len())
	}
}

func TestRestoreOrRebuild_FallsBackToRebuild(t *testing.T) {
	paths := writeCorpusFiles(t)
	artifacts := filepath.Join(t.TempDir(), "index") // nothing persisted yet

	embedder := &stubBatchEmbedder{}
	primary, secondary := newSlots()
	svc := New(embedder, 2, 2, zap.NewNop())
	p := NewPipeline(svc, primary, secondary, paths, artifacts, zap.NewNop())

	if err := p.RestoreOrRebuild(context.Background()); err != nil {
		t.Fatalf("RestoreOrRebuild: %v", err)
	}
	if embedder.calls == 0 {
		t.Error("embedder never called despite missing snapshots")
	}
	if !primary.Built() || !secondary.Built() {
		t.Error("stores not built after fallback rebuild")
	}
}
