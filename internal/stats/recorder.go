// Package stats accumulates per-query routing observability. The recorder is
// purely additive: it never blocks a query and never influences routing.
package stats

import (
	"sync"
	"time"

	"github.com/answerdesk/supportrag/internal/domain"
	"github.com/answerdesk/supportrag/internal/metrics"
)

// Recorder keeps running aggregates over all routed queries.
type Recorder struct {
	mu              sync.Mutex
	startedAt       time.Time
	total           int64
	fallbacks       int64
	escalations     int64
	bySource        map[domain.Source]int64
	totalLatency    time.Duration
	totalConfidence float64
}

// New creates an empty recorder.
func New() *Recorder {
	return &Recorder{
		startedAt: time.Now(),
		bySource:  make(map[domain.Source]int64),
	}
}

// Record ingests one routed query. Also feeds the Prometheus side.
func (r *Recorder) Record(decision domain.RoutingDecision, confidence float64, latency time.Duration) {
	r.mu.Lock()
	r.total++
	if decision.FallbackTriggered {
		r.fallbacks++
	}
	if decision.Outcome == domain.OutcomeEscalated {
		r.escalations++
	} else {
		r.bySource[decision.Source]++
	}
	r.totalLatency += latency
	r.totalConfidence += confidence
	r.mu.Unlock()

	metrics.QueriesTotal.WithLabelValues(string(decision.Source), string(decision.Outcome)).Inc()
	if decision.FallbackTriggered {
		metrics.FallbacksTotal.Inc()
	}
	metrics.QueryDuration.Observe(latency.Seconds())
	metrics.QueryConfidence.Observe(confidence)
}

// Snapshot is a point-in-time aggregate view.
type Snapshot struct {
	TotalQueries      int64   `json:"total_queries"`
	PrimaryAnswered   int64   `json:"primary_answered"`
	SecondaryAnswered int64   `json:"secondary_answered"`
	Fallbacks         int64   `json:"fallbacks"`
	Escalations       int64   `json:"escalations"`
	EscalationRate    float64 `json:"escalation_rate"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	AvgConfidence     float64 `json:"avg_confidence"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Snapshot returns current aggregates. Averages are zero while no queries ran.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		TotalQueries:      r.total,
		PrimaryAnswered:   r.bySource[domain.SourcePrimary],
		SecondaryAnswered: r.bySource[domain.SourceSecondary],
		Fallbacks:         r.fallbacks,
		Escalations:       r.escalations,
		UptimeSeconds:     time.Since(r.startedAt).Seconds(),
	}
	if r.total > 0 {
		s.EscalationRate = float64(r.escalations) / float64(r.total)
		s.AvgLatencyMs = float64(r.totalLatency.Milliseconds()) / float64(r.total)
		s.AvgConfidence = r.totalConfidence / float64(r.total)
	}
	return s
}
