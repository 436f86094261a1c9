// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_speech_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Submission metrics
	SubmissionsTotal *prometheus.CounterVec
	DispatchLatency  *prometheus.HistogramVec

	// Callback metrics
	CallbacksTotal    *prometheus.CounterVec
	CallbacksRejected *prometheus.CounterVec
	SegmentsPersisted prometheus.Counter
	IngestFailures    *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
// A nil registerer creates unregistered metrics, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		SubmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of transcription jobs submitted",
		}, []string{"provider", "result"}),
		DispatchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of the one-way provider invocation",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"provider"}),

		CallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Total number of provider callbacks mapped",
		}, []string{"provider", "status"}),
		CallbacksRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_rejected_total",
			Help:      "Total number of provider callbacks rejected",
		}, []string{"provider", "reason"}),
		SegmentsPersisted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_persisted_total",
			Help:      "Total number of transcript segments persisted",
		}),
		IngestFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Total number of results that could not be ingested",
		}, []string{"provider", "reason"}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled",
		}, []string{"method", "route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
	}
}

// RecordSubmission records a submission attempt and its dispatch latency.
func (m *Metrics) RecordSubmission(provider string, err error, latencySeconds float64) {
	m.DispatchLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.SubmissionsTotal.WithLabelValues(provider, "error").Inc()
		return
	}
	m.SubmissionsTotal.WithLabelValues(provider, "dispatched").Inc()
}

// RecordCallback records a mapped callback.
func (m *Metrics) RecordCallback(provider, status string) {
	m.CallbacksTotal.WithLabelValues(provider, status).Inc()
}

// RecordCallbackRejected records a callback that failed validation or mapping.
func (m *Metrics) RecordCallbackRejected(provider, reason string) {
	m.CallbacksRejected.WithLabelValues(provider, reason).Inc()
}

// RecordSegmentsPersisted records persisted segments.
func (m *Metrics) RecordSegmentsPersisted(n int) {
	m.SegmentsPersisted.Add(float64(n))
}

// RecordIngestFailure records a result that could not be parsed or stored.
func (m *Metrics) RecordIngestFailure(provider, reason string) {
	m.IngestFailures.WithLabelValues(provider, reason).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordHTTPRequest records a handled HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, code string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, code).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
