package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the audiotee service
type Metrics struct {
	// Capture metrics, labeled by source ("system" or "mic")
	CallbacksReceived *prometheus.CounterVec
	EmptyTicks        *prometheus.CounterVec
	BytesCaptured     *prometheus.CounterVec

	// Chunking metrics
	ChunksEmitted *prometheus.CounterVec
	ChunkSize     *prometheus.HistogramVec
	PartialFlush  *prometheus.CounterVec

	// Conversion metrics
	PacketsConverted *prometheus.CounterVec

	// Output metrics
	EmitErrors *prometheus.CounterVec

	// Recorder metrics
	ActiveRecorders  prometheus.Gauge
	RecorderDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Capture metrics
		CallbacksReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotee_callbacks_received_total",
			Help: "Total number of real-time capture callbacks received",
		}, []string{"source"}),
		EmptyTicks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotee_empty_ticks_total",
			Help: "Total number of capture callbacks that carried no audio",
		}, []string{"source"}),
		BytesCaptured: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotee_bytes_captured_total",
			Help: "Total number of raw audio bytes captured",
		}, []string{"source"}),

		// Chunking metrics
		ChunksEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotee_chunks_emitted_total",
			Help: "Total number of fixed-duration audio chunks emitted",
		}, []string{"source"}),
		ChunkSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiotee_chunk_size_bytes",
			Help:    "Size of emitted audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 10), // 1KB to ~1MB
		}, []string{"source"}),
		PartialFlush: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotee_partial_flushes_total",
			Help: "Total number of short final chunks flushed at stop",
		}, []string{"source"}),

		// Conversion metrics
		PacketsConverted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotee_packets_converted_total",
			Help: "Total number of packets run through the format converter",
		}, []string{"source"}),

		// Output metrics
		EmitErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotee_emit_errors_total",
			Help: "Total number of packet emission failures",
		}, []string{"source"}),

		// Recorder metrics
		ActiveRecorders: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "audiotee_active_recorders",
			Help: "Current number of running recorders",
		}),
		RecorderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiotee_recorder_duration_seconds",
			Help:    "Duration of completed recording sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5 hours
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "audiotee_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audiotee_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordCallback records one real-time capture callback
func (m *Metrics) RecordCallback(source string, bytes int) {
	m.CallbacksReceived.WithLabelValues(source).Inc()
	if bytes == 0 {
		m.EmptyTicks.WithLabelValues(source).Inc()
		return
	}
	m.BytesCaptured.WithLabelValues(source).Add(float64(bytes))
}

// RecordChunk records an emitted fixed-duration chunk
func (m *Metrics) RecordChunk(source string, sizeBytes int) {
	m.ChunksEmitted.WithLabelValues(source).Inc()
	m.ChunkSize.WithLabelValues(source).Observe(float64(sizeBytes))
}

// RecordPartialFlush records the short final chunk emitted at stop
func (m *Metrics) RecordPartialFlush(source string) {
	m.PartialFlush.WithLabelValues(source).Inc()
}

// RecordConversion records a packet run through the converter
func (m *Metrics) RecordConversion(source string) {
	m.PacketsConverted.WithLabelValues(source).Inc()
}

// RecordEmitError records a packet emission failure
func (m *Metrics) RecordEmitError(source string) {
	m.EmitErrors.WithLabelValues(source).Inc()
}

// RecorderStarted increments the active recorder gauge
func (m *Metrics) RecorderStarted() {
	m.ActiveRecorders.Inc()
}

// RecorderStopped decrements the active recorder gauge and records the
// session duration
func (m *Metrics) RecorderStopped(durationSeconds float64) {
	m.ActiveRecorders.Dec()
	m.RecorderDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
