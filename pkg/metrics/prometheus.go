// Package metrics provides Prometheus metrics for the caretrack service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the caretrack service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Engine
	analyses        *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec
	analysesShared  *prometheus.CounterVec
	stageRules      *prometheus.CounterVec
	scoring         *prometheus.CounterVec

	// Ingestion
	submissions          *prometheus.CounterVec
	submissionDuplicates *prometheus.CounterVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Repository
	repositoryCases                   prometheus.Gauge
	repositoryEvents                  prometheus.Gauge
	repositoryScales                  prometheus.Gauge
	repositoryUpdateLatency           prometheus.Histogram
	repositoryQueryLatency            prometheus.Histogram
	repositorySnapshotRebuildDuration prometheus.Histogram
	repositorySnapshotLastUnix        prometheus.Gauge
	repositorySnapshotCount           prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec
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
		namespace:        "caretrack",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.analyses = auto.NewCounterVec(m.counterOpts("analyses_total",
		"Total number of engine analyses by kind"), []string{"kind"})
	m.analysisLatency = auto.NewHistogramVec(m.histogramOpts("analysis_latency_milliseconds",
		"Engine analysis latency in milliseconds by kind"), []string{"kind"})
	m.analysesShared = auto.NewCounterVec(m.counterOpts("analyses_shared_total",
		"Analyses answered from a concurrent identical request"), []string{"kind"})
	m.stageRules = auto.NewCounterVec(m.counterOpts("stage_rule_total",
		"Stage results by deciding rule and stage"), []string{"rule", "stage"})
	m.scoring = auto.NewCounterVec(m.counterOpts("scoring_total",
		"Scale payload scoring attempts by scale type and outcome"), []string{"scale", "outcome"})

	m.submissions = auto.NewCounterVec(m.counterOpts("submissions_total",
		"Accepted record submissions by kind"), []string{"kind"})
	m.submissionDuplicates = auto.NewCounterVec(m.counterOpts("submissions_duplicate_total",
		"Submissions acknowledged as exact duplicates by kind"), []string{"kind"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current size of the submission queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio",
		"Queue utilization ratio (current size / capacity)"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Total number of submissions enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Total number of submissions dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total",
		"Total number of submissions rejected by backpressure"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds",
		"Time from enqueue to dequeue in milliseconds"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Number of running workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Number of workers processing a submission"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Worker processing latency in milliseconds"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Total number of worker errors"))

	m.repositoryCases = auto.NewGauge(m.gaugeOpts("repository_cases", "Number of cases in the store"))
	m.repositoryEvents = auto.NewGauge(m.gaugeOpts("repository_events", "Number of events in the store"))
	m.repositoryScales = auto.NewGauge(m.gaugeOpts("repository_scales", "Number of scale records in the store"))
	m.repositoryUpdateLatency = auto.NewHistogram(m.histogramOpts("repository_update_latency_milliseconds",
		"Repository write latency in milliseconds"))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogramOpts("repository_query_latency_milliseconds",
		"Repository read latency in milliseconds"))
	m.repositorySnapshotRebuildDuration = auto.NewHistogram(m.histogramOpts(
		"repository_snapshot_rebuild_duration_milliseconds", "Repository snapshot rebuild duration in milliseconds"))
	m.repositorySnapshotLastUnix = auto.NewGauge(m.gaugeOpts("repository_snapshot_last_unix",
		"Unix timestamp of the last repository snapshot publish"))
	m.repositorySnapshotCount = auto.NewCounter(m.counterOpts("repository_snapshot_count_total",
		"Total number of repository snapshots published"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})
}

// RecordAnalysis counts one analysis of kind and its latency.
func RecordAnalysis(kind string, latencyMs float64) {
	globalManager.analyses.WithLabelValues(kind).Inc()
	globalManager.analysisLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordAnalysisShared counts an analysis served from an in-flight duplicate.
func RecordAnalysisShared(kind string) {
	globalManager.analysesShared.WithLabelValues(kind).Inc()
}

// RecordStageRule counts the rule that decided a stage.
func RecordStageRule(rule, stage string) {
	globalManager.stageRules.WithLabelValues(rule, stage).Inc()
}

// RecordScoring counts a scoring attempt. outcome is "scored", "skipped",
// "failed" or "out_of_range".
func RecordScoring(scale, outcome string) {
	globalManager.scoring.WithLabelValues(scale, outcome).Inc()
}

// RecordSubmission counts an accepted submission.
func RecordSubmission(kind string) {
	globalManager.submissions.WithLabelValues(kind).Inc()
}

// RecordSubmissionDuplicate counts a duplicate submission.
func RecordSubmissionDuplicate(kind string) {
	globalManager.submissionDuplicates.WithLabelValues(kind).Inc()
}

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
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the number of running workers.
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
	globalManager.workerErrors.Inc()
}

// UpdateRepositorySizes sets the store size gauges.
func UpdateRepositorySizes(cases, events, scales int) {
	globalManager.repositoryCases.Set(float64(cases))
	globalManager.repositoryEvents.Set(float64(events))
	globalManager.repositoryScales.Set(float64(scales))
}

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// RecordRepositorySnapshot records one snapshot publish.
func RecordRepositorySnapshot(durationMs float64, unix int64) {
	globalManager.repositorySnapshotRebuildDuration.Observe(durationMs)
	globalManager.repositorySnapshotLastUnix.Set(float64(unix))
	globalManager.repositorySnapshotCount.Inc()
}

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
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
