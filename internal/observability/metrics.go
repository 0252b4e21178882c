package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the upload service, repurposed
// from the original scan/auth/rate-limit surface to chunk- and
// session-level concerns.
type Metrics struct {
	UploadTotal       *prometheus.CounterVec
	UploadDuration    *prometheus.HistogramVec
	UploadSize        *prometheus.HistogramVec
	UploadErrors      *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	ChunkTotal        *prometheus.CounterVec
	StorageOperations *prometheus.CounterVec
	StorageDuration   *prometheus.HistogramVec
	BackpressureHits  *prometheus.CounterVec
	AIHookDispatched  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		UploadTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_total",
				Help:      "Total number of completed or failed uploads",
			},
			[]string{"status"},
		),
		UploadDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Duration from init to complete in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{},
		),
		UploadSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_size_bytes",
				Help:      "Declared size of uploaded files in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 12),
			},
			[]string{"mime_type"},
		),
		UploadErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_errors_total",
				Help:      "Total number of upload errors by kind",
			},
			[]string{"error_kind"},
		),
		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of sessions not yet in a terminal status",
			},
		),
		ChunkTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunk_total",
				Help:      "Total number of chunk upload attempts by outcome",
			},
			[]string{"outcome"},
		),
		StorageOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of object store operations",
			},
			[]string{"operation", "status"},
		),
		StorageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Duration of object store operations in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),
		BackpressureHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backpressure_total",
				Help:      "Total number of requests rejected by an admission gate",
			},
			[]string{"gate"},
		),
		AIHookDispatched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_hook_dispatched_total",
				Help:      "Total number of AI hook jobs dispatched by purpose",
			},
			[]string{"purpose", "status"},
		),
	}
}

// RecordUpload records a terminal upload outcome.
func (m *Metrics) RecordUpload(status, mimeType string, size int64, duration float64) {
	m.UploadTotal.WithLabelValues(status).Inc()
	m.UploadDuration.WithLabelValues().Observe(duration)
	m.UploadSize.WithLabelValues(mimeType).Observe(float64(size))
}

// RecordUploadError records an upload error by domain kind.
func (m *Metrics) RecordUploadError(errorKind string) {
	m.UploadErrors.WithLabelValues(errorKind).Inc()
}

// RecordChunk records a chunk upload attempt outcome ("uploaded",
// "already_uploaded", "rejected").
func (m *Metrics) RecordChunk(outcome string) {
	m.ChunkTotal.WithLabelValues(outcome).Inc()
}

// RecordStorageOperation records an object store operation.
func (m *Metrics) RecordStorageOperation(operation, status string, duration float64) {
	m.StorageOperations.WithLabelValues(operation, status).Inc()
	m.StorageDuration.WithLabelValues(operation).Observe(duration)
}

// RecordBackpressure records an admission gate rejection.
func (m *Metrics) RecordBackpressure(gate string) {
	m.BackpressureHits.WithLabelValues(gate).Inc()
}

// RecordAIHookDispatch records an AI hook job submission.
func (m *Metrics) RecordAIHookDispatch(purpose, status string) {
	m.AIHookDispatched.WithLabelValues(purpose, status).Inc()
}

// IncrementActiveSessions increments the active-session gauge.
func (m *Metrics) IncrementActiveSessions() {
	m.ActiveSessions.Inc()
}

// DecrementActiveSessions decrements the active-session gauge.
func (m *Metrics) DecrementActiveSessions() {
	m.ActiveSessions.Dec()
}
