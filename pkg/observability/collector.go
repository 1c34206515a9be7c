package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Global collector instance for singleton pattern
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	DocumentsUploaded  *prometheus.CounterVec
	MindMapsGenerated  prometheus.Counter
	MindMapsDeleted    prometheus.Counter
	GenerationFailures *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	NodesPerMap        prometheus.Histogram

	// Inference metrics
	InferenceRequests *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec

	// Repository metrics
	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec

	// Query bus metrics
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	// Use singleton pattern to avoid duplicate registration in tests
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	// Return existing collector if already created
	if globalCollector != nil {
		return globalCollector
	}

	// Create a new registry for this collector
	registry := prometheus.NewRegistry()

	// Create metrics (not auto-registered)
	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	documentsUploaded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_uploaded_total",
			Help:      "Total number of documents accepted for processing",
		},
		[]string{"extension"},
	)

	mindmapsGenerated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mindmaps_generated_total",
			Help:      "Total number of mind maps generated",
		},
	)

	mindmapsDeleted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mindmaps_deleted_total",
			Help:      "Total number of mind maps deleted",
		},
	)

	generationFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Total number of failed generation attempts by stage",
		},
		[]string{"stage"},
	)

	generationDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "End-to-end mind map generation duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	nodesPerMap := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nodes_per_map",
			Help:      "Number of nodes in generated mind maps",
			Buckets:   []float64{1, 3, 5, 10, 20, 50, 100},
		},
	)

	inferenceRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_requests_total",
			Help:      "Total number of summarization backend calls",
		},
		[]string{"backend", "status"},
	)

	inferenceDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Summarization backend call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend"},
	)

	dbOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_operations_total",
			Help:      "Total number of repository operations",
		},
		[]string{"operation", "entity", "status"},
	)

	dbDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Repository operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "entity"},
	)

	queryRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of queries dispatched through the query bus",
		},
		[]string{"query", "status"},
	)

	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query handler duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
	)

	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
	)

	// Register all metrics with the registry
	registry.MustRegister(
		httpRequests,
		httpDuration,
		documentsUploaded,
		mindmapsGenerated,
		mindmapsDeleted,
		generationFailures,
		generationDuration,
		nodesPerMap,
		inferenceRequests,
		inferenceDuration,
		dbOperations,
		dbDuration,
		queryRequests,
		queryDuration,
		cacheHits,
		cacheMisses,
	)

	// Create and store the collector
	globalCollector = &Collector{
		registry:           registry,
		HTTPRequests:       httpRequests,
		HTTPDuration:       httpDuration,
		DocumentsUploaded:  documentsUploaded,
		MindMapsGenerated:  mindmapsGenerated,
		MindMapsDeleted:    mindmapsDeleted,
		GenerationFailures: generationFailures,
		GenerationDuration: generationDuration,
		NodesPerMap:        nodesPerMap,
		InferenceRequests:  inferenceRequests,
		InferenceDuration:  inferenceDuration,
		DBOperations:       dbOperations,
		DBDuration:         dbDuration,
		QueryRequests:      queryRequests,
		QueryDuration:      queryDuration,
		CacheHits:          cacheHits,
		CacheMisses:        cacheMisses,
	}

	return globalCollector
}

// ResetForTesting resets the global collector for testing purposes
func ResetForTesting() {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()
	globalCollector = nil
}

// ObserveUpload records a document upload by file extension
func (c *Collector) ObserveUpload(extension string) {
	if extension == "" {
		extension = "none"
	}
	c.DocumentsUploaded.WithLabelValues(extension).Inc()
}

// ObserveGeneration records a completed generation
func (c *Collector) ObserveGeneration(duration time.Duration, nodeCount int) {
	c.MindMapsGenerated.Inc()
	c.GenerationDuration.Observe(duration.Seconds())
	c.NodesPerMap.Observe(float64(nodeCount))
}

// ObserveGenerationFailure records a failed generation attempt
func (c *Collector) ObserveGenerationFailure(stage string) {
	c.GenerationFailures.WithLabelValues(stage).Inc()
}

// ObserveDeletion records completed mind map deletions
func (c *Collector) ObserveDeletion(count int) {
	c.MindMapsDeleted.Add(float64(count))
}

// ObserveInference records a summarization backend call
func (c *Collector) ObserveInference(backend string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.InferenceRequests.WithLabelValues(backend, status).Inc()
	c.InferenceDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// ObserveDBOperation records a repository operation. The entity label carries
// the logical collection, which in the single-table layout is what tells item
// kinds apart.
func (c *Collector) ObserveDBOperation(operation, entity string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.DBOperations.WithLabelValues(operation, entity, status).Inc()
	c.DBDuration.WithLabelValues(operation, entity).Observe(duration.Seconds())
}

// ObserveQuery records a query bus dispatch
func (c *Collector) ObserveQuery(query string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.QueryRequests.WithLabelValues(query, status).Inc()
	c.QueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// ObserveCacheAccess records a cache lookup outcome
func (c *Collector) ObserveCacheAccess(hit bool) {
	if hit {
		c.CacheHits.Inc()
		return
	}
	c.CacheMisses.Inc()
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}
