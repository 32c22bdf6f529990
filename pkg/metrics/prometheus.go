// Package metrics provides Prometheus metrics for the acquisition pipeline and
// peel analysis.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the peelforce service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Capture stage
	samplesCaptured prometheus.Counter
	samplesDropped  prometheus.Counter

	// Capture queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge

	// Batch-process stage
	batchesProcessed     prometheus.Counter
	batchSize            prometheus.Histogram
	samplesForwarded     prometheus.Counter
	forwardDropped       prometheus.Counter
	displayNotifications prometheus.Counter
	displayDropped       prometheus.Counter
	throughputHz         prometheus.Gauge
	calibrated           prometheus.Gauge

	// Sessions and analysis
	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsEmpty     prometheus.Counter
	sessionSamples    prometheus.Histogram
	analysisLatency   prometheus.Histogram

	// Collaborators
	sinkErrors     *prometheus.CounterVec
	hardwareEvents *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "peelforce",
		subsystem:        "acquisition",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.samplesCaptured = m.counter("samples_captured_total", "Samples accepted by the capture queue")
	m.samplesDropped = m.counter("samples_dropped_total", "Samples dropped because the capture queue was full")

	m.queueSize = m.gauge("queue_size", "Current number of samples waiting in the capture queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capture queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Capture queue utilization ratio (size / capacity)")

	m.batchesProcessed = m.counter("batches_processed_total", "Batches drained by the batch processor")
	m.batchSize = m.histogram("batch_size", "Number of samples per drained batch", []float64{1, 2, 5, 10, 20, 50, 100})
	m.samplesForwarded = m.counter("samples_forwarded_total", "Samples forwarded to the full-rate logging consumer")
	m.forwardDropped = m.counter("samples_forward_dropped_total", "Samples discarded at shutdown before reaching the logging consumer")
	m.displayNotifications = m.counter("display_notifications_total", "Display updates emitted after rate limiting")
	m.displayDropped = m.counter("display_dropped_total", "Display updates skipped because the publisher was busy")
	m.throughputHz = m.gauge("throughput_hz", "Achieved sample throughput measured by the performance monitor")
	m.calibrated = m.gauge("calibrated", "1 when the calibration unit holds a complete gain/offset pair")

	m.sessionsStarted = m.counter("sessions_started_total", "Layer monitoring sessions armed")
	m.sessionsCompleted = m.counter("sessions_completed_total", "Layer monitoring sessions analyzed")
	m.sessionsEmpty = m.counter("sessions_empty_total", "Sessions stopped with too few samples to analyze")
	m.sessionSamples = m.histogram("session_samples", "Samples buffered per completed session",
		prometheus.ExponentialBuckets(10, 2, 12))
	m.analysisLatency = m.histogram("analysis_latency_milliseconds", "Curve analysis latency in milliseconds", m.histogramBuckets)

	m.sinkErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sink_errors_total",
		Help:      "Metrics sink write failures by sink",
	}, []string{"sink"})

	m.hardwareEvents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hardware_events_total",
		Help:      "Sample source attach/detach/error notifications",
	}, []string{"kind"})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of operations that resulted in errors",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Capture stage.

// RecordSampleCaptured increments the captured samples counter.
func RecordSampleCaptured() {
	globalManager.samplesCaptured.Inc()
}

// RecordSampleDropped increments the dropped samples counter.
func RecordSampleDropped() {
	globalManager.samplesDropped.Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// Batch-process stage.

// RecordBatch records one drained batch of the given size.
func RecordBatch(size int) {
	globalManager.batchesProcessed.Inc()
	globalManager.batchSize.Observe(float64(size))
}

// RecordSamplesForwarded adds n samples to the forwarded counter.
func RecordSamplesForwarded(n int) {
	globalManager.samplesForwarded.Add(float64(n))
}

// RecordForwardDropped adds n samples discarded before reaching the logging consumer.
func RecordForwardDropped(n int) {
	globalManager.forwardDropped.Add(float64(n))
}

// RecordDisplayNotification increments the display notification counter.
func RecordDisplayNotification() {
	globalManager.displayNotifications.Inc()
}

// RecordDisplayDropped increments the skipped display update counter.
func RecordDisplayDropped() {
	globalManager.displayDropped.Inc()
}

// UpdateThroughputHz sets the achieved sample rate.
func UpdateThroughputHz(hz float64) {
	globalManager.throughputHz.Set(hz)
}

// UpdateCalibrated publishes the calibration state.
func UpdateCalibrated(ok bool) {
	if ok {
		globalManager.calibrated.Set(1)
		return
	}
	globalManager.calibrated.Set(0)
}

// Session and analysis.

// RecordSessionStarted increments the armed sessions counter.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
}

// RecordSessionCompleted records an analyzed session and its sample count.
func RecordSessionCompleted(samples int) {
	globalManager.sessionsCompleted.Inc()
	globalManager.sessionSamples.Observe(float64(samples))
}

// RecordSessionEmpty increments the counter of sessions stopped without a result.
func RecordSessionEmpty() {
	globalManager.sessionsEmpty.Inc()
}

// RecordAnalysisLatency records curve analysis latency in milliseconds.
func RecordAnalysisLatency(latencyMs float64) {
	globalManager.analysisLatency.Observe(latencyMs)
}

// RecordSinkError increments the error counter for the named sink.
func RecordSinkError(sink string) {
	globalManager.sinkErrors.WithLabelValues(sink).Inc()
}

// RecordHardwareEvent increments the hardware event counter for kind.
func RecordHardwareEvent(kind string) {
	globalManager.hardwareEvents.WithLabelValues(kind).Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
