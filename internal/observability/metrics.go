package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the collision API.
type Metrics struct {
	// Tabular query metrics.
	QueryDuration *prometheus.HistogramVec // labels: kind={page,aggregate,count}
	QueryErrors   *prometheus.CounterVec   // labels: kind={page,aggregate,count}

	// Artifact cache metrics.
	ArtifactLookups       *prometheus.CounterVec   // labels: artifact, result={hit,miss,stale}
	ArtifactBuildDuration *prometheus.HistogramVec // labels: artifact
	ArtifactInvalidations prometheus.Counter

	// Prediction metrics.
	Predictions *prometheus.CounterVec // labels: outcome={success,rejected,model_error}

	// Audit publishing metrics.
	AuditEvents *prometheus.CounterVec // labels: outcome={published,error}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "collision_api",
			Name:      "query_duration_seconds",
			Help:      "Duration of tabular queries including CSV encoding.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collision_api",
			Name:      "query_errors_total",
			Help:      "Tabular queries that failed, by kind.",
		}, []string{"kind"}),
		ArtifactLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collision_api",
			Name:      "artifact_lookups_total",
			Help:      "Artifact cache lookups by artifact and result.",
		}, []string{"artifact", "result"}),
		ArtifactBuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "collision_api",
			Name:      "artifact_build_duration_seconds",
			Help:      "Time spent computing and persisting an artifact.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"artifact"}),
		ArtifactInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "collision_api",
			Name:      "artifact_invalidations_total",
			Help:      "Artifacts removed by explicit or watcher-driven invalidation.",
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collision_api",
			Name:      "predictions_total",
			Help:      "At-fault predictions by outcome.",
		}, []string{"outcome"}),
		AuditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collision_api",
			Name:      "audit_events_total",
			Help:      "Audit events handed to Kafka by outcome.",
		}, []string{"outcome"}),
	}

	prometheus.MustRegister(
		m.QueryDuration,
		m.QueryErrors,
		m.ArtifactLookups,
		m.ArtifactBuildDuration,
		m.ArtifactInvalidations,
		m.Predictions,
		m.AuditEvents,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		QueryDuration:         prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "collision_api", Name: "query_duration_seconds"}, []string{"kind"}),
		QueryErrors:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "collision_api", Name: "query_errors_total"}, []string{"kind"}),
		ArtifactLookups:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "collision_api", Name: "artifact_lookups_total"}, []string{"artifact", "result"}),
		ArtifactBuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "collision_api", Name: "artifact_build_duration_seconds"}, []string{"artifact"}),
		ArtifactInvalidations: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "collision_api", Name: "artifact_invalidations_total"}),
		Predictions:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "collision_api", Name: "predictions_total"}, []string{"outcome"}),
		AuditEvents:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "collision_api", Name: "audit_events_total"}, []string{"outcome"}),
	}
}
