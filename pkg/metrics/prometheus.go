// Package metrics provides Prometheus metrics for the duelrank service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the duelrank service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Duel serving
	duelsServed       *prometheus.CounterVec
	candidateSize     prometheus.Gauge
	candidateCapacity prometheus.Gauge
	candidateDropped  prometheus.Counter

	// Guarded refill
	refills        prometheus.Counter
	refillsSkipped prometheus.Counter
	refillPushed   prometheus.Counter
	refillDuration prometheus.Histogram
	refillInFlight prometheus.Gauge

	// Match recording
	matchesRecorded     prometheus.Counter
	matchesDuplicate    prometheus.Counter
	matchesFailed       prometheus.Counter
	ratingUpdateLatency prometheus.Histogram
	totalPlayers        prometheus.Gauge

	// Store
	storeQueryLatency *prometheus.HistogramVec
	storeTxLatency    prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "duelrank",
		subsystem:        "collection",
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

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.duelsServed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duels_served_total",
		Help:      "Duels handed out, by source (buffer or fallback)",
	}, []string{"source"})
	m.candidateSize = m.gauge("candidate_buffer_size", "Duels currently waiting in the candidate buffer")
	m.candidateCapacity = m.gauge("candidate_buffer_capacity", "Capacity of the candidate buffer")
	m.candidateDropped = m.counter("candidate_buffer_dropped_total", "Duels discarded because the candidate buffer was full")

	m.refills = m.counter("refills_total", "Guarded refills that ran")
	m.refillsSkipped = m.counter("refills_skipped_total", "Refill attempts skipped because one was already in flight")
	m.refillPushed = m.counter("refill_pushed_total", "Duels pushed by guarded refills")
	m.refillDuration = m.histogram("refill_duration_milliseconds", "Duration of a guarded refill in milliseconds", m.histogramBuckets)
	m.refillInFlight = m.gauge("refill_in_flight", "1 while a guarded refill is running")

	m.matchesRecorded = m.counter("matches_recorded_total", "Matches applied to the rating store")
	m.matchesDuplicate = m.counter("matches_duplicate_total", "Match submissions dropped as duplicates")
	m.matchesFailed = m.counter("matches_failed_total", "Matches that failed to apply")
	m.ratingUpdateLatency = m.histogram("rating_update_latency_milliseconds", "Latency of the rating transaction in milliseconds", m.histogramBuckets)
	m.totalPlayers = m.gauge("total_players", "Players in the collection")

	m.storeQueryLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_milliseconds",
		Help:      "Store read latency in milliseconds by operation",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})
	m.storeTxLatency = m.histogram("store_tx_latency_milliseconds", "Store transaction latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current size of the match queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the match queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (0.0 to 1.0)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Matches enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Matches dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Time a match spent in the queue in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Workers in the pool")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently recording a match")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds", m.histogramBuckets)
	m.workerErrorRate = m.counter("worker_errors_total", "Worker processing errors")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_component_total",
		Help:      "Errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Duel metrics.

// RecordDuelServed counts a duel handed out from source ("buffer" or "fallback").
func RecordDuelServed(source string) {
	globalManager.duelsServed.WithLabelValues(source).Inc()
}

// UpdateCandidateBuffer sets the candidate buffer occupancy and capacity.
func UpdateCandidateBuffer(size, capacity int) {
	globalManager.candidateSize.Set(float64(size))
	globalManager.candidateCapacity.Set(float64(capacity))
}

// RecordCandidateDropped counts a duel discarded by a full buffer.
func RecordCandidateDropped() {
	globalManager.candidateDropped.Inc()
}

// Refill metrics.

// RecordRefill records a completed guarded refill.
func RecordRefill(durationMs float64, pushed int) {
	globalManager.refills.Inc()
	globalManager.refillPushed.Add(float64(pushed))
	globalManager.refillDuration.Observe(durationMs)
}

// RecordRefillSkipped counts a refill attempt that lost the flight.
func RecordRefillSkipped() {
	globalManager.refillsSkipped.Inc()
}

// UpdateRefillInFlight sets the refill in-flight gauge.
func UpdateRefillInFlight(inFlight bool) {
	if inFlight {
		globalManager.refillInFlight.Set(1)
		return
	}
	globalManager.refillInFlight.Set(0)
}

// Match metrics.

// RecordMatchRecorded increments the recorded matches counter.
func RecordMatchRecorded() {
	globalManager.matchesRecorded.Inc()
}

// RecordMatchDuplicate increments the duplicate matches counter.
func RecordMatchDuplicate() {
	globalManager.matchesDuplicate.Inc()
}

// RecordMatchFailed increments the failed matches counter.
func RecordMatchFailed() {
	globalManager.matchesFailed.Inc()
}

// RecordRatingUpdateLatency records the rating transaction latency.
func RecordRatingUpdateLatency(latencyMs float64) {
	globalManager.ratingUpdateLatency.Observe(latencyMs)
}

// UpdateTotalPlayers sets the player count.
func UpdateTotalPlayers(count int) {
	globalManager.totalPlayers.Set(float64(count))
}

// Store metrics.

// RecordStoreQueryLatency records a store read latency for operation.
func RecordStoreQueryLatency(operation string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreTxLatency records a store transaction latency.
func RecordStoreTxLatency(latencyMs float64) {
	globalManager.storeTxLatency.Observe(latencyMs)
}

// Queue metrics.

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

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a match waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerCount sets the number of workers in the pool.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System metrics.

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
