package metrics

import "time"

// NullMetrics discards every measurement. It is the default Metrics for
// components that don't configure one.
type NullMetrics struct{}

// Null returns the shared no-op Metrics.
func Null() Metrics { return NullMetrics{} }

func (NullMetrics) RecordProcessed(string, string)             {}
func (NullMetrics) RecordFetchLatency(string, time.Duration)   {}
func (NullMetrics) RecordStoreLatency(string, time.Duration)   {}
func (NullMetrics) RecordHTTPRequest(string, int)              {}
func (NullMetrics) RecordHTTPRetry(string, string)             {}
func (NullMetrics) RecordCheckpointSave(string)                {}
func (NullMetrics) SetInflightFeeds(int)                       {}
func (NullMetrics) RecordError(string, string)                 {}
