package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/answerdesk/supportrag/internal/domain"
	"github.com/answerdesk/supportrag/internal/index"
)

func TestSave_BeforeInstall(t *testing.T) {
	s := New(domain.SourcePrimary, index.BuildParams{Seed: 1})

	err := s.Save(filepath.Join(t.TempDir(), "primary"))
	if !errors.Is(err, domain.ErrIndexNotBuilt) {
		t.Errorf("got %v, want ErrIndexNotBuilt", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "primary")
	docs := testDocs(10, 4)

	src := New(domain.SourcePrimary, index.BuildParams{Seed: 1})
	if err := src.Install(docs); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := src.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := New(domain.SourcePrimary, index.BuildParams{Seed: 1})
	if err := dst.Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if dst.Len() != src.Len() {
		t.Fatalf("Len = %d, want %d", dst.Len(), src.Len())
	}
	if dst.ClusterCount() != src.ClusterCount() {
		t.Errorf("ClusterCount = %d, want %d", dst.ClusterCount(), src.ClusterCount())
	}

	srcAt, _ := src.BuiltAt()
	dstAt, ok := dst.BuiltAt()
	if !ok || !dstAt.Equal(srcAt) {
		t.Errorf("BuiltAt = %v, want %v", dstAt, srcAt)
	}

	// Same query must rank identically against the reloaded store.
	query := docs[3].Embedding
	want, err := src.Search(query, 5, src.ClusterCount())
	if err != nil {
		t.Fatalf("search source: %v", err)
	}
	got, err := dst.Search(query, 5, dst.ClusterCount())
	if err != nil {
		t.Fatalf("search loaded: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Document.ID != want[i].Document.ID {
			t.Errorf("result %d: %s, want %s", i, got[i].Document.ID, want[i].Document.ID)
		}
		if got[i].Similarity != want[i].Similarity {
			t.Errorf("result %d similarity: %v, want %v", i, got[i].Similarity, want[i].Similarity)
		}
	}

	// Document metadata survives the round trip.
	if got[0].Document.Text == "" || got[0].Document.Category == "" {
		t.Errorf("document metadata lost: %+v", got[0].Document)
	}
}

func TestLoad_SourceMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "primary")

	src := New(domain.SourcePrimary, index.BuildParams{Seed: 1})
	if err := src.Install(testDocs(6, 4)); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := src.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst := New(domain.SourceSecondary, index.BuildParams{Seed: 1})
	err := dst.Load(dir)
	if !errors.Is(err, domain.ErrVersionMismatch) {
		t.Errorf("got %v, want ErrVersionMismatch", err)
	}
	if dst.Built() {
		t.Error("failed load must not install a generation")
	}
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "primary")

	src := New(domain.SourcePrimary, index.BuildParams{Seed: 1})
	if err := src.Install(testDocs(6, 4)); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := src.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tampered := []byte(`{"version":99}`)
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), tampered, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	dst := New(domain.SourcePrimary, index.BuildParams{Seed: 1})
	if err := dst.Load(dir); !errors.Is(err, domain.ErrVersionMismatch) {
		t.Errorf("got %v, want ErrVersionMismatch", err)
	}
}

func TestLoad_TruncatedVectorBlob(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "primary")

	src := New(domain.SourcePrimary, index.BuildParams{Seed: 1})
	if err := src.Install(testDocs(6, 4)); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := src.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, "vectors.bin")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read vectors: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-4], 0o644); err != nil {
		t.Fatalf("truncate vectors: %v", err)
	}

	dst := New(domain.SourcePrimary, index.BuildParams{Seed: 1})
	if err := dst.Load(dir); !errors.Is(err, domain.ErrVersionMismatch) {
		t.Errorf("got %v, want ErrVersionMismatch", err)
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	s := New(domain.SourcePrimary, index.BuildParams{Seed: 1})

	if err := s.Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error loading from missing directory")
	}
}

func TestSave_Overwrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "primary")

	s := New(domain.SourcePrimary, index.BuildParams{Seed: 1})
	if err := s.Install(testDocs(4, 4)); err != nil {
		t.Fatalf("install first: %v", err)
	}
	if err := s.Save(dir); err != nil {
		t.Fatalf("save first: %v", err)
	}

	if err := s.Install(testDocs(9, 4)); err != nil {
		t.Fatalf("install second: %v", err)
	}
	if err := s.Save(dir); err != nil {
		t.Fatalf("save second: %v", err)
	}

	dst := New(domain.SourcePrimary, index.BuildParams{Seed: 1})
	if err := dst.Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dst.Len() != 9 {
		t.Errorf("Len = %d, want 9", dst.Len())
	}
}
