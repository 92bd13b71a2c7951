package metrics

import "github.com/prometheus/client_golang/prometheus"

// Query routing Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportrag",
			Name:      "queries_total",
			Help:      "Total routed queries by chosen source and outcome",
		},
		[]string{"source", "outcome"},
	)

	FallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportrag",
			Name:      "fallbacks_total",
			Help:      "Queries whose primary top score missed the threshold",
		},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "supportrag",
			Name:      "query_duration_seconds",
			Help:      "End-to-end routing latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	QueryConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "supportrag",
			Name:      "query_confidence",
			Help:      "Top similarity of the chosen (or best) store per query",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	RebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportrag",
			Name:      "rebuilds_total",
			Help:      "Store rebuilds by corpus source and status",
		},
		[]string{"source", "status"},
	)
)

var queryMetricsRegistered bool

// RegisterQueryMetrics registers query routing metrics. Must be called once from main.
func RegisterQueryMetrics() {
	if queryMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(FallbacksTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryConfidence)
	prometheus.MustRegister(RebuildsTotal)
	queryMetricsRegistered = true
}
