package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	OpenSessions   prometheus.Gauge
	SessionEvents  *prometheus.CounterVec
	ChunkOutcomes  *prometheus.CounterVec
	ScoringErrors  *prometheus.CounterVec
	ScoringLatency prometheus.Histogram
	WSMessages     *prometheus.CounterVec

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OpenSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Number of open call risk sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		ChunkOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_outcomes_total",
			Help:      "Ingested chunk outcomes (merged, duplicate, late, invalid, unavailable).",
		}, []string{"outcome"}),
		ScoringErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_errors_total",
			Help:      "Scoring backend errors by code.",
		}, []string{"code"}),
		ScoringLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_latency_ms",
			Help:      "Latency of external chunk scoring calls in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000},
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		stages: newStageWindow(256),
	}
}

func (m *Metrics) ObserveScoringLatency(d time.Duration) {
	m.ScoringLatency.Observe(float64(d.Milliseconds()))
	m.ObserveStage(StageScore, d)
}

// ObserveStage records a pipeline stage latency in the rolling window behind
// the perf endpoint.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.Observe(stage, float64(d.Milliseconds()))
}

// SnapshotStages summarizes recent pipeline stage latencies.
func (m *Metrics) SnapshotStages() StageSnapshot {
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
