package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics is the production Metrics implementation, namespaced
// "feedspine_" (§4.9). All counters/histograms are labeled by feed_name so
// a single registry can serve every registered adapter.
type PrometheusMetrics struct {
	processed       *prometheus.CounterVec
	fetchLatency    *prometheus.HistogramVec
	storeLatency    *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpRetries     *prometheus.CounterVec
	checkpointSaves *prometheus.CounterVec
	inflightFeeds   prometheus.Gauge
	errors          *prometheus.CounterVec
}

// NewPrometheusMetrics registers every feedspine metric with registry.
// Pass prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for test isolation.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedspine",
			Name:      "records_processed_total",
			Help:      "Candidates processed by the pipeline, labeled by outcome.",
		}, []string{"feed_name", "result"}),

		fetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "feedspine",
			Name:      "fetch_latency_ms",
			Help:      "Adapter fetch-to-candidate latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"feed_name"}),

		storeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "feedspine",
			Name:      "store_latency_ms",
			Help:      "Storage.Store call latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}, []string{"feed_name"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedspine",
			Name:      "http_requests_total",
			Help:      "HTTP responses observed by the HttpClient, labeled by status class.",
		}, []string{"feed_name", "status"}),

		httpRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedspine",
			Name:      "http_retries_total",
			Help:      "HTTP retry attempts, labeled by reason.",
		}, []string{"feed_name", "reason"}),

		checkpointSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedspine",
			Name:      "checkpoint_saves_total",
			Help:      "Successful CheckpointStore.Save calls.",
		}, []string{"feed_name"}),

		inflightFeeds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "feedspine",
			Name:      "inflight_feeds",
			Help:      "Feeds currently occupying an Orchestrator worker slot.",
		}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedspine",
			Name:      "errors_total",
			Help:      "Feed-run-ending errors, labeled by error kind.",
		}, []string{"feed_name", "error_type"}),
	}
}

func (pm *PrometheusMetrics) RecordProcessed(feedName, result string) {
	pm.processed.WithLabelValues(feedName, result).Inc()
}

func (pm *PrometheusMetrics) RecordFetchLatency(feedName string, d time.Duration) {
	pm.fetchLatency.WithLabelValues(feedName).Observe(float64(d.Milliseconds()))
}

func (pm *PrometheusMetrics) RecordStoreLatency(feedName string, d time.Duration) {
	pm.storeLatency.WithLabelValues(feedName).Observe(float64(d.Milliseconds()))
}

func (pm *PrometheusMetrics) RecordHTTPRequest(feedName string, status int) {
	class := strconv.Itoa(status/100) + "xx"
	pm.httpRequests.WithLabelValues(feedName, class).Inc()
}

func (pm *PrometheusMetrics) RecordHTTPRetry(feedName, reason string) {
	pm.httpRetries.WithLabelValues(feedName, reason).Inc()
}

func (pm *PrometheusMetrics) RecordCheckpointSave(feedName string) {
	pm.checkpointSaves.WithLabelValues(feedName).Inc()
}

func (pm *PrometheusMetrics) SetInflightFeeds(count int) {
	pm.inflightFeeds.Set(float64(count))
}

func (pm *PrometheusMetrics) RecordError(feedName, errorType string) {
	pm.errors.WithLabelValues(feedName, errorType).Inc()
}
