// Package metrics provides Prometheus metrics for the keystride typing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rate buckets cover beginners through competitive typists.
var (
	wpmBuckets = []float64{10, 20, 30, 40, 50, 60, 80, 100, 120, 150, 200}  //nolint:gochecknoglobals // histogram layout
	cpmBuckets = []float64{50, 100, 150, 200, 250, 300, 400, 500, 600, 800} //nolint:gochecknoglobals // histogram layout
	cerBuckets = []float64{0, 0.01, 0.02, 0.05, 0.1, 0.2, 0.3, 0.5, 1}      //nolint:gochecknoglobals // histogram layout
)

// Manager owns all Prometheus collectors of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Typing
	attemptsRecorded     *prometheus.CounterVec
	attemptWPM           *prometheus.HistogramVec
	attemptCPM           *prometheus.HistogramVec
	attemptCER           *prometheus.HistogramVec
	heatmapMisses        *prometheus.CounterVec
	duplicateSubmissions prometheus.Counter
	submitLatency        prometheus.Histogram
	achievementsUnlocked *prometheus.CounterVec
	streakUpdates        *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec

	// Store
	storeUsers        prometheus.Gauge
	storeAttempts     prometheus.Gauge
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActive            prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Packs and external sources
	packCatalogReloads prometheus.Counter
	packsTotal         prometheus.Gauge
	sourceFetchLatency *prometheus.HistogramVec
	sourceFetchErrors  *prometheus.CounterVec

	// Live feed
	feedSubscribers prometheus.Gauge
	feedDropped     prometheus.Counter

	// Errors by component
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "keystride",
		subsystem:        "typing",
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every family
	m.attemptsRecorded = m.counterVec("attempts_recorded_total", "Typing attempts stored, by language", "lang")
	m.attemptWPM = m.histogramVec("attempt_wpm", "Words per minute of stored attempts", wpmBuckets, "lang")
	m.attemptCPM = m.histogramVec("attempt_cpm", "Characters per minute of stored attempts", cpmBuckets, "lang")
	m.attemptCER = m.histogramVec("attempt_cer", "Character error rate of stored attempts", cerBuckets, "lang")
	m.heatmapMisses = m.counterVec("heatmap_misses_total", "Positional character misses, by language", "lang")
	m.duplicateSubmissions = m.counter("duplicate_submissions_total", "Attempt submissions rejected as retries")
	m.submitLatency = m.histogram("submit_latency_milliseconds", "Time to compute and store one attempt", m.histogramBuckets)
	m.achievementsUnlocked = m.counterVec("achievements_unlocked_total", "Achievements unlocked, by tier", "tier")
	m.streakUpdates = m.counterVec("streak_updates_total", "Streak updates by outcome", "outcome")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.histogramBuckets, "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses by endpoint and code", "endpoint", "method", "code")
	m.rateLimited = m.counterVec("rate_limited_total", "Requests rejected or delayed by a rate limiter", "scope")

	m.storeUsers = m.gauge("store_users", "Registered users")
	m.storeAttempts = m.gauge("store_attempts", "Stored attempts")
	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds", "Store operation latency", m.histogramBuckets, "op")
	m.storeErrors = m.counterVec("store_errors_total", "Failed store operations", "op")

	m.queueSize = m.gauge("queue_size", "Attempt events waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the attempt event queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue fill ratio")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Attempt events enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Attempt events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Attempt events dropped at enqueue")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Time from enqueue to worker pickup", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Configured workers")
	m.workerActive = m.gauge("worker_active_count", "Workers currently handling an event")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker handling time per event", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Events a worker failed to handle")

	m.packCatalogReloads = m.counter("pack_catalog_reloads_total", "Pack catalog cache rebuilds")
	m.packsTotal = m.gauge("packs", "Packs in the catalog")
	m.sourceFetchLatency = m.histogramVec("source_fetch_latency_milliseconds", "External source fetch latency", m.histogramBuckets, "source")
	m.sourceFetchErrors = m.counterVec("source_fetch_errors_total", "Failed external source fetches", "source")

	m.feedSubscribers = m.gauge("feed_subscribers", "Open live feed subscriptions")
	m.feedDropped = m.counter("feed_dropped_total", "Feed events dropped for slow subscribers")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordAttempt observes one stored attempt.
func RecordAttempt(lang string, wpm, cpm, cer float64, misses int) {
	globalManager.attemptsRecorded.WithLabelValues(lang).Inc()
	globalManager.attemptWPM.WithLabelValues(lang).Observe(wpm)
	globalManager.attemptCPM.WithLabelValues(lang).Observe(cpm)
	globalManager.attemptCER.WithLabelValues(lang).Observe(cer)
	if misses > 0 {
		globalManager.heatmapMisses.WithLabelValues(lang).Add(float64(misses))
	}
}

// RecordDuplicateSubmission increments the duplicate submission counter.
func RecordDuplicateSubmission() {
	globalManager.duplicateSubmissions.Inc()
}

// RecordSubmitLatency records attempt submission latency in milliseconds.
func RecordSubmitLatency(latencyMs float64) {
	globalManager.submitLatency.Observe(latencyMs)
}

// RecordAchievementUnlocked counts an unlocked achievement.
func RecordAchievementUnlocked(tier string) {
	globalManager.achievementsUnlocked.WithLabelValues(tier).Inc()
}

// RecordStreakUpdate counts a streak update: "extended", "reset" or "unchanged".
func RecordStreakUpdate(outcome string) {
	globalManager.streakUpdates.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError records an error response.
func RecordHTTPError(endpoint, method, code string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, code).Inc()
}

// RecordRateLimited counts a request held back by the limiter for scope.
func RecordRateLimited(scope string) {
	globalManager.rateLimited.WithLabelValues(scope).Inc()
}

// UpdateStoreTotals sets the user and attempt counts.
func UpdateStoreTotals(users, attempts int) {
	globalManager.storeUsers.Set(float64(users))
	globalManager.storeAttempts.Set(float64(attempts))
}

// RecordStoreQueryLatency records a store operation latency in milliseconds.
func RecordStoreQueryLatency(op string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records time spent waiting in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker handling time in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordPackCatalogReload counts a catalog rebuild and sets the pack gauge.
func RecordPackCatalogReload(packs int) {
	globalManager.packCatalogReloads.Inc()
	globalManager.packsTotal.Set(float64(packs))
}

// RecordSourceFetch records an external source fetch.
func RecordSourceFetch(source string, latencyMs float64, err error) {
	globalManager.sourceFetchLatency.WithLabelValues(source).Observe(latencyMs)
	if err != nil {
		globalManager.sourceFetchErrors.WithLabelValues(source).Inc()
	}
}

// AddFeedSubscribers adjusts the open subscription gauge by delta.
func AddFeedSubscribers(delta int) {
	globalManager.feedSubscribers.Add(float64(delta))
}

// RecordFeedDropped counts an event not delivered to a slow subscriber.
func RecordFeedDropped() {
	globalManager.feedDropped.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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
