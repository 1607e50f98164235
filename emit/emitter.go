package emit

import "context"

// Emitter receives observability events from a collection run.
//
// Implementations must be non-blocking and thread-safe: Emit may be called
// concurrently from multiple adapter workers and must never slow down or
// panic a collection. A slow or unavailable backend should buffer, drop
// with an internally logged error, or go async — never block the caller.
type Emitter interface {
	// Emit sends a single event. Must not block or panic.
	Emit(event Event)

	// EmitBatch sends a batch of events in original order. Returns an
	// error only for catastrophic, non-per-event failures (e.g. the
	// backend is misconfigured); partial per-event failures should be
	// logged internally and swallowed.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until every buffered event has been delivered or ctx
	// is done. Safe to call more than once.
	Flush(ctx context.Context) error
}
