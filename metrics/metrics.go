// Package metrics defines the collection-run metrics boundary and its
// Prometheus implementation.
package metrics

import "time"

// Metrics is the boundary a Pipeline/Orchestrator records collection-run
// metrics through (§4.9). Orchestrator and Pipeline depend on this
// interface, not on Prometheus directly, so tests can substitute Null.
type Metrics interface {
	// RecordProcessed counts one processed candidate. result is "new",
	// "duplicate", or "error".
	RecordProcessed(feedName, result string)

	RecordFetchLatency(feedName string, d time.Duration)
	RecordStoreLatency(feedName string, d time.Duration)

	// RecordHTTPRequest counts one HTTP response by status class.
	RecordHTTPRequest(feedName string, status int)

	// RecordHTTPRetry counts one retry attempt. reason is "rate_limited",
	// "server_error", "timeout", or "transport".
	RecordHTTPRetry(feedName, reason string)

	RecordCheckpointSave(feedName string)

	// SetInflightFeeds reports the current Orchestrator worker-pool
	// occupancy.
	SetInflightFeeds(count int)

	// RecordError counts one feed-run-ending error. errorType mirrors the
	// error-kind table in §7 (e.g. "feed_error", "storage_error").
	RecordError(feedName, errorType string)
}
