package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNullMetricsAcceptsEveryCall(t *testing.T) {
	m := Null()
	m.RecordProcessed("feed-a", "new")
	m.RecordFetchLatency("feed-a", time.Millisecond)
	m.RecordStoreLatency("feed-a", time.Millisecond)
	m.RecordHTTPRequest("feed-a", 200)
	m.RecordHTTPRetry("feed-a", "timeout")
	m.RecordCheckpointSave("feed-a")
	m.SetInflightFeeds(1)
	m.RecordError("feed-a", "feed_error")
}

func TestPrometheusMetricsRecordProcessedIncrementsLabeledCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(registry)

	pm.RecordProcessed("feed-a", "new")
	pm.RecordProcessed("feed-a", "new")
	pm.RecordProcessed("feed-a", "duplicate")

	if got := testutil.ToFloat64(pm.processed.WithLabelValues("feed-a", "new")); got != 2 {
		t.Fatalf("records_processed_total{result=new} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pm.processed.WithLabelValues("feed-a", "duplicate")); got != 1 {
		t.Fatalf("records_processed_total{result=duplicate} = %v, want 1", got)
	}
}

func TestPrometheusMetricsRecordHTTPRequestBucketsByStatusClass(t *testing.T) {
	registry := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(registry)

	pm.RecordHTTPRequest("feed-a", 200)
	pm.RecordHTTPRequest("feed-a", 204)
	pm.RecordHTTPRequest("feed-a", 503)

	if got := testutil.ToFloat64(pm.httpRequests.WithLabelValues("feed-a", "2xx")); got != 2 {
		t.Fatalf("http_requests_total{status=2xx} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pm.httpRequests.WithLabelValues("feed-a", "5xx")); got != 1 {
		t.Fatalf("http_requests_total{status=5xx} = %v, want 1", got)
	}
}

func TestPrometheusMetricsSetInflightFeedsOverwritesGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	pm := NewPrometheusMetrics(registry)

	pm.SetInflightFeeds(3)
	pm.SetInflightFeeds(1)

	if got := testutil.ToFloat64(pm.inflightFeeds); got != 1 {
		t.Fatalf("inflight_feeds = %v, want 1", got)
	}
}

func TestPrometheusMetricsRecordErrorIncrementsLabeledCounter(t *testing.T) {
	// Construction and RecordError must not panic, and one RecordError
	// call must count once under its feed/error-type labels.
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("NewPrometheusMetrics panicked: %v", r)
		}
	}()
	// A throwaway registry keeps repeated runs in one process from
	// double-registering the same metric names on the global registerer.
	pm := NewPrometheusMetrics(prometheus.NewRegistry())
	pm.RecordError("feed-a", "feed_error")
	if got := testutil.ToFloat64(pm.errors.WithLabelValues("feed-a", "feed_error")); got != 1 {
		t.Fatalf("errors_total = %v, want 1", got)
	}
}
