// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_transcript"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Auto-restart metrics
	RestartsScheduled *prometheus.CounterVec
	RestartsStale     prometheus.Counter
	RestartsFailed    prometheus.Counter

	// Result metrics
	ResultsInterim       prometheus.Counter
	ResultsAccepted      *prometheus.CounterVec
	ResultsRejected      prometheus.Counter
	ResultsLowConfidence prometheus.Counter
	AcceptedConfidence   prometheus.Histogram

	// Engine metrics
	EngineErrors *prometheus.CounterVec

	// Persistence metrics
	PersistenceWrites   prometheus.Counter
	PersistenceFailures *prometheus.CounterVec

	// Event publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec

	// gRPC metrics
	RPCTotal *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all Prometheus metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of recognition sessions started by a client",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of active recognition sessions, including ones paused for auto-restart",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of recognition sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		RestartsScheduled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_scheduled_total",
			Help:      "Total number of auto-restarts scheduled",
		}, []string{"reason"}),
		RestartsStale: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_stale_total",
			Help:      "Total number of scheduled restarts discarded because their generation was stale",
		}),
		RestartsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_failed_total",
			Help:      "Total number of auto-restart attempts that failed",
		}),

		ResultsInterim: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_interim_total",
			Help:      "Total number of interim results merged",
		}),
		ResultsAccepted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_accepted_total",
			Help:      "Total number of final results accepted",
		}, []string{"representation"}),
		ResultsRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_rejected_total",
			Help:      "Total number of final results rejected for low confidence",
		}),
		ResultsLowConfidence: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_low_confidence_total",
			Help:      "Total number of accepted results carrying a low confidence advisory",
		}),
		AcceptedConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "accepted_confidence",
			Help:      "Confidence of accepted final results",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		}),

		EngineErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total number of recognition engine errors",
		}, []string{"kind"}),

		PersistenceWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_writes_total",
			Help:      "Total number of transcript save attempts",
		}),
		PersistenceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Total number of swallowed persistence failures",
		}, []string{"op"}),

		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of transcript events published",
		}, []string{"destination", "event_type"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of transcript event publish errors",
		}, []string{"destination", "event_type"}),
		PublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Transcript event publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"destination"}),

		RPCTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls handled",
		}, []string{"method", "code"}),
	}
}

// RecordSessionStart records a session started by a client.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending, by stop or by a fatal error.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordRestartScheduled(reason string) {
	m.RestartsScheduled.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordRestartStale() {
	m.RestartsStale.Inc()
}

func (m *Metrics) RecordRestartFailed() {
	m.RestartsFailed.Inc()
}

func (m *Metrics) RecordInterim() {
	m.ResultsInterim.Inc()
}

// RecordAccepted records an accepted final result; representation is "flat" or "segments".
func (m *Metrics) RecordAccepted(representation string, confidence float64) {
	m.ResultsAccepted.WithLabelValues(representation).Inc()
	m.AcceptedConfidence.Observe(confidence)
}

func (m *Metrics) RecordRejected() {
	m.ResultsRejected.Inc()
}

func (m *Metrics) RecordLowConfidence() {
	m.ResultsLowConfidence.Inc()
}

func (m *Metrics) RecordEngineError(kind string) {
	m.EngineErrors.WithLabelValues(kind).Inc()
}

// RecordPersistence records a save or load attempt; err is swallowed by the caller.
func (m *Metrics) RecordPersistence(op string, err error) {
	if op == "save" {
		m.PersistenceWrites.Inc()
	}
	if err != nil {
		m.PersistenceFailures.WithLabelValues(op).Inc()
	}
}

// RecordPublish records a transcript event publish attempt.
func (m *Metrics) RecordPublish(destination, eventType string, err error, latencySeconds float64) {
	m.PublishTotal.WithLabelValues(destination, eventType).Inc()
	m.PublishLatency.WithLabelValues(destination).Observe(latencySeconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(destination, eventType).Inc()
	}
}

func (m *Metrics) RecordRPC(method, code string) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
}
