package build

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/answerdesk/supportrag/internal/domain"
	"github.com/answerdesk/supportrag/internal/ingest"
	"github.com/answerdesk/supportrag/internal/metrics"
)

// Slot is a persistable store the pipeline rebuilds.
type Slot interface {
	Target
	Len() int
	ClusterCount() int
	Save(dir string) error
	Load(dir string) error
}

// CorpusPaths names the CSV inputs.
type CorpusPaths struct {
	Primary   string
	Secondary string
}

// Summary describes the outcome of a full rebuild.
type Summary struct {
	PrimaryDocuments   int     `json:"primary_documents"`
	SecondaryDocuments int     `json:"secondary_documents"`
	PrimaryClusters    int     `json:"primary_clusters"`
	SecondaryClusters  int     `json:"secondary_clusters"`
	ElapsedMs          float64 `json:"elapsed_ms"`
}

// Pipeline drives the full ingest, embed, index, persist cycle for both
// corpora. Only one rebuild runs at a time.
type Pipeline struct {
	svc       *Service
	primary   Slot
	secondary Slot
	paths     CorpusPaths
	artifacts string
	logger    *zap.Logger

	mu sync.Mutex
}

// NewPipeline creates a rebuild pipeline. artifacts is the directory index
// snapshots are saved under; empty disables persistence.
func NewPipeline(svc *Service, primary, secondary Slot, paths CorpusPaths, artifacts string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		svc:       svc,
		primary:   primary,
		secondary: secondary,
		paths:     paths,
		artifacts: artifacts,
		logger:    logger,
	}
}

// RebuildAll re-ingests both CSV corpora, rebuilds both stores and persists
// the new generations. A failure on either corpus aborts the whole rebuild
// and leaves already-installed generations serving.
func (p *Pipeline) RebuildAll(ctx context.Context) (Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()

	if err := p.rebuildOne(ctx, p.primary, p.paths.Primary, ingest.LoadPrimary); err != nil {
		return Summary{}, err
	}
	if err := p.rebuildOne(ctx, p.secondary, p.paths.Secondary, ingest.LoadSecondary); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		PrimaryDocuments:   p.primary.Len(),
		SecondaryDocuments: p.secondary.Len(),
		PrimaryClusters:    p.primary.ClusterCount(),
		SecondaryClusters:  p.secondary.ClusterCount(),
		ElapsedMs:          float64(time.Since(start).Microseconds()) / 1000,
	}

	p.logger.Info("full rebuild complete",
		zap.Int("primary_documents", summary.PrimaryDocuments),
		zap.Int("secondary_documents", summary.SecondaryDocuments),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

// RestoreOrRebuild loads persisted index snapshots when present, falling back
// to a full rebuild for any store that has no usable snapshot.
func (p *Pipeline) RestoreOrRebuild(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	type entry struct {
		slot Slot
		path string
		load func(string, *zap.Logger) ([]domain.Document, error)
	}
	for _, e := range []entry{
		{p.primary, p.paths.Primary, ingest.LoadPrimary},
		{p.secondary, p.paths.Secondary, ingest.LoadSecondary},
	} {
		if p.artifacts != "" {
			dir := p.snapshotDir(e.slot)
			if err := e.slot.Load(dir); err == nil {
				p.logger.Info("index restored from snapshot",
					zap.String("source", string(e.slot.Source())),
					zap.String("dir", dir),
					zap.Int("documents", e.slot.Len()),
				)
				continue
			} else {
				p.logger.Warn("snapshot unusable, rebuilding",
					zap.String("source", string(e.slot.Source())),
					zap.Error(err),
				)
			}
		}
		if err := p.rebuildOne(ctx, e.slot, e.path, e.load); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) rebuildOne(
	ctx context.Context,
	slot Slot,
	path string,
	load func(string, *zap.Logger) ([]domain.Document, error),
) error {
	source := string(slot.Source())

	docs, err := load(path, p.logger)
	if err != nil {
		metrics.RebuildsTotal.WithLabelValues(source, "error").Inc()
		return fmt.Errorf("load %s corpus: %w", source, err)
	}

	if err := p.svc.Rebuild(ctx, slot, docs); err != nil {
		metrics.RebuildsTotal.WithLabelValues(source, "error").Inc()
		return err
	}

	if p.artifacts != "" {
		if err := slot.Save(p.snapshotDir(slot)); err != nil {
			// The in-memory generation is already serving; a failed
			// snapshot only costs the next restart a rebuild.
			p.logger.Warn("index snapshot failed",
				zap.String("source", source),
				zap.Error(err),
			)
		}
	}

	metrics.RebuildsTotal.WithLabelValues(source, "ok").Inc()
	return nil
}

func (p *Pipeline) snapshotDir(slot Slot) string {
	return filepath.Join(p.artifacts, string(slot.Source()))
}
