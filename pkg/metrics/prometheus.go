// Package metrics provides Prometheus metrics for the SmartScore service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the SmartScore service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring
	submissions       *prometheus.CounterVec
	submissionLatency prometheus.Histogram
	phaseTransitions  *prometheus.CounterVec
	resets            prometheus.Counter
	displayLatency    prometheus.Histogram
	currentPhase      *prometheus.GaugeVec

	// Population
	reviewersTotal  prometheus.Gauge
	activeReviewers prometheus.Gauge
	projectsTotal   prometheus.Gauge
	scoresTotal     prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryShardCount      prometheus.Gauge
	repositoryRecordsPerShard *prometheus.GaugeVec
	repositoryUpdateLatency   prometheus.Histogram
	repositoryQueryLatency    prometheus.Histogram

	// Extraction
	extractions       *prometheus.CounterVec
	extractionLatency prometheus.Histogram

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "smartscore",
		subsystem:        "event",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

//nolint:funlen // one place for every metric definition
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.submissions = m.counterVec("submissions_total",
		"Score submissions by outcome (accepted, closed, not_found, invalid_dimension, conflict, error)", "outcome")
	m.submissionLatency = m.histogram("submission_latency_milliseconds",
		"Time to validate and persist one score submission")
	m.phaseTransitions = m.counterVec("phase_transitions_total",
		"Administrator phase changes by target phase", "phase")
	m.resets = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "resets_total",
		Help:      "Number of event resets",
	})
	m.displayLatency = m.histogram("display_build_latency_milliseconds",
		"Time to read a snapshot and project the display payload")
	m.currentPhase = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "phase",
		Help:      "1 for the current event phase, 0 otherwise",
	}, []string{"phase"})

	m.reviewersTotal = m.gauge("reviewers_total", "Reviewers known to the identity store")
	m.activeReviewers = m.gauge("reviewers_active", "Reviewers currently counted in aggregates")
	m.projectsTotal = m.gauge("projects_total", "Projects on the programme")
	m.scoresTotal = m.gauge("scores_total", "Rows in the score ledger")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.repositoryShardCount = m.gauge("repository_shard_count", "Number of in-memory ledger shards")
	m.repositoryRecordsPerShard = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repository_records_per_shard",
		Help:      "Scores held by each ledger shard",
	}, []string{"shard"})
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds",
		"Repository write latency")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds",
		"Repository read latency")

	m.extractions = m.counterVec("extractions_total",
		"AI project extraction calls by outcome", "outcome")
	m.extractionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "extraction_latency_milliseconds",
		Help:      "Latency of AI project extraction calls",
		Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	})

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSubmission counts a submission outcome and its latency.
func RecordSubmission(outcome string, latencyMs float64) {
	globalManager.submissions.WithLabelValues(outcome).Inc()
	globalManager.submissionLatency.Observe(latencyMs)
}

// RecordPhaseTransition counts a phase change and moves the phase gauge.
func RecordPhaseTransition(phase string) {
	globalManager.phaseTransitions.WithLabelValues(phase).Inc()
	UpdateCurrentPhase(phase)
}

// UpdateCurrentPhase sets the phase gauge to 1 for phase and 0 for the rest.
func UpdateCurrentPhase(phase string) {
	for _, p := range []string{"CLOSED", "ACCEPTING", "REVEALED"} {
		v := 0.0
		if p == phase {
			v = 1
		}
		globalManager.currentPhase.WithLabelValues(p).Set(v)
	}
}

// RecordReset counts an event reset.
func RecordReset() {
	globalManager.resets.Inc()
	UpdateCurrentPhase("CLOSED")
}

// RecordDisplayLatency records how long a display payload took to build.
func RecordDisplayLatency(latencyMs float64) {
	globalManager.displayLatency.Observe(latencyMs)
}

// UpdatePopulation sets the identity and ledger size gauges.
func UpdatePopulation(reviewers, active, projects, scores int) {
	globalManager.reviewersTotal.Set(float64(reviewers))
	globalManager.activeReviewers.Set(float64(active))
	globalManager.projectsTotal.Set(float64(projects))
	globalManager.scoresTotal.Set(float64(scores))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository Metrics Functions.

// UpdateRepositoryShardCount sets the total number of repository shards.
func UpdateRepositoryShardCount(count int) {
	globalManager.repositoryShardCount.Set(float64(count))
}

// UpdateRepositoryRecordsPerShard sets the number of records for a specific shard.
func UpdateRepositoryRecordsPerShard(shardID string, count int) {
	globalManager.repositoryRecordsPerShard.WithLabelValues(shardID).Set(float64(count))
}

// RecordRepositoryUpdateLatency records repository update operation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordExtraction counts an extraction call and its latency.
func RecordExtraction(outcome string, latencyMs float64) {
	globalManager.extractions.WithLabelValues(outcome).Inc()
	globalManager.extractionLatency.Observe(latencyMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
