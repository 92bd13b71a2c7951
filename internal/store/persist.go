package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/answerdesk/supportrag/internal/domain"
	"github.com/answerdesk/supportrag/internal/index"
)

// schemaVersion is the persisted artifact layout version. The manifest,
// centroid blob, vector blob, inverted lists and document metadata are
// versioned together; a mismatch anywhere fails the load outright.
const schemaVersion = 1

// Artifact file names within a store directory.
const (
	manifestFile  = "manifest.json"
	centroidsFile = "centroids.bin"
	vectorsFile   = "vectors.bin"
	listsFile     = "lists.json"
	documentsFile = "documents.json"
)

type manifest struct {
	Version       int           `json:"version"`
	Source        domain.Source `json:"source"`
	Dimension     int           `json:"dimension"`
	DocumentCount int           `json:"document_count"`
	ClusterCount  int           `json:"cluster_count"`
	BuiltAt       time.Time     `json:"built_at"`
}

// Save writes the current generation's artifacts into dir. Files are written to
// a sibling temp directory first and renamed into place so a crashed save never
// leaves a half-written store behind.
func (s *Store) Save(dir string) error {
	g := s.gen.Load()
	if g == nil {
		return fmt.Errorf("save %s store: %w", s.source, domain.ErrIndexNotBuilt)
	}

	tmp := dir + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear temp dir: %w", err)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	m := manifest{
		Version:       schemaVersion,
		Source:        s.source,
		Dimension:     g.index.Dimension(),
		DocumentCount: len(g.docs),
		ClusterCount:  g.index.ClusterCount(),
		BuiltAt:       g.builtAt,
	}
	if err := writeJSON(filepath.Join(tmp, manifestFile), m); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, listsFile), g.index.Lists()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, documentsFile), g.docs); err != nil {
		return err
	}
	if err := writeVectors(filepath.Join(tmp, centroidsFile), g.index.Centroids()); err != nil {
		return err
	}
	if err := writeVectors(filepath.Join(tmp, vectorsFile), g.index.Vectors()); err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove previous artifacts: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("install artifacts: %w", err)
	}
	return nil
}

// Load reconstructs a generation from artifacts in dir and installs it. Any
// schema version or consistency mismatch fails with ErrVersionMismatch; no
// partial recovery is attempted.
func (s *Store) Load(dir string) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	var m manifest
	if err := readJSON(filepath.Join(dir, manifestFile), &m); err != nil {
		return err
	}
	if m.Version != schemaVersion {
		return fmt.Errorf("%w: artifact version %d, supported %d",
			domain.ErrVersionMismatch, m.Version, schemaVersion)
	}
	if m.Source != s.source {
		return fmt.Errorf("%w: artifacts for %q loaded into %q store",
			domain.ErrVersionMismatch, m.Source, s.source)
	}

	var lists [][]int
	if err := readJSON(filepath.Join(dir, listsFile), &lists); err != nil {
		return err
	}
	var docs []domain.Document
	if err := readJSON(filepath.Join(dir, documentsFile), &docs); err != nil {
		return err
	}
	centroids, err := readVectors(filepath.Join(dir, centroidsFile), m.Dimension)
	if err != nil {
		return err
	}
	vectors, err := readVectors(filepath.Join(dir, vectorsFile), m.Dimension)
	if err != nil {
		return err
	}

	if len(docs) != m.DocumentCount || len(vectors) != m.DocumentCount {
		return fmt.Errorf("%w: manifest says %d documents, found %d metadata / %d vectors",
			domain.ErrVersionMismatch, m.DocumentCount, len(docs), len(vectors))
	}
	if len(centroids) != m.ClusterCount {
		return fmt.Errorf("%w: manifest says %d clusters, found %d centroids",
			domain.ErrVersionMismatch, m.ClusterCount, len(centroids))
	}

	ix, err := index.Reconstruct(m.Dimension, centroids, lists, vectors)
	if err != nil {
		return fmt.Errorf("reconstruct %s index: %w", s.source, err)
	}

	for i := range docs {
		docs[i].Embedding = vectors[i]
	}
	s.gen.Store(&generation{docs: docs, index: ix, builtAt: m.BuiltAt})
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeVectors serializes vectors as a flat little-endian float32 blob.
func writeVectors(path string, vectors [][]float32) error {
	var total int
	for _, v := range vectors {
		total += len(v)
	}
	buf := make([]byte, total*4)
	off := 0
	for _, v := range vectors {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readVectors splits a flat little-endian float32 blob into dim-sized vectors.
func readVectors(path string, dim int) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if dim <= 0 || len(data)%4 != 0 || (len(data)/4)%dim != 0 {
		return nil, fmt.Errorf("%w: %s holds %d bytes, not divisible into dimension-%d vectors",
			domain.ErrVersionMismatch, filepath.Base(path), len(data), dim)
	}
	count := len(data) / 4 / dim
	vectors := make([][]float32, count)
	off := 0
	for i := range vectors {
		v := make([]float32, dim)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = v
	}
	return vectors, nil
}
