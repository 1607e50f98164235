package feedspine

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmer-error and control-flow conditions (§7).
var (
	// ErrNotRegistered is raised by Scheduler/Registry operations on an
	// unknown feed name. Programmer error: callers must register first.
	ErrNotRegistered = errors.New("feedspine: not registered")

	// ErrAlreadyRegistered is raised by Register on a duplicate feed name.
	ErrAlreadyRegistered = errors.New("feedspine: already registered")

	// ErrInvalidRetryPolicy names an unusable retry policy. No function in
	// this module returns it: httpclient.RetryPolicy values are used as
	// given, without validation.
	ErrInvalidRetryPolicy = errors.New("feedspine: invalid retry policy")

	// ErrCheckpointNotStarted is returned when CheckpointManager.Update,
	// Save, or Complete is called before Start or Resume (§4.6 invariant).
	ErrCheckpointNotStarted = errors.New("feedspine: checkpoint manager has no current checkpoint")

	// ErrNotFound names a missing entity. Storage and CheckpointStore
	// lookups do not return it: they report a miss as a nil result with a
	// nil error, distinct from a transport failure.
	ErrNotFound = errors.New("feedspine: not found")

	// ErrRetryExhausted indicates every configured attempt failed.
	ErrRetryExhausted = errors.New("feedspine: retry attempts exhausted")

	// ErrCancelled indicates cooperative cancellation stopped an operation
	// cleanly; callers should treat partial results as valid (§7).
	ErrCancelled = errors.New("feedspine: cancelled")
)

// ValidationError reports a malformed field on a model value (e.g. a
// natural_key outside the accepted length range).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("feedspine: invalid %s: %s", e.Field, e.Reason)
}

// FeedError wraps an adapter-level failure with the adapter's name, per
// §4.3 "Upstream transport errors abort the sequence with a FeedError that
// carries the adapter name and the causing error."
type FeedError struct {
	Adapter string
	Cause   error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feedspine: feed %q: %v", e.Adapter, e.Cause)
}

func (e *FeedError) Unwrap() error { return e.Cause }

// StorageError wraps a backing-store failure with the operation that
// triggered it. Storage implementations MUST surface these rather than
// swallow them (§4.1 "Failure semantics").
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("feedspine: storage %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// RetryExhaustedError carries the last error and attempt count when an
// HTTP retry budget is depleted (§4.2 RetryConfig).
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("feedspine: retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return errors.Join(ErrRetryExhausted, e.Last) }

// CheckpointError wraps a CheckpointStore write failure. Per §7, a run
// continues in memory on CheckpointError and periodically retries; if the
// store is still unavailable at Complete(), the run is reported failed by
// the caller (the CheckpointManager itself only returns the error).
type CheckpointError struct {
	Op    string
	Cause error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("feedspine: checkpoint %s: %v", e.Op, e.Cause)
}

func (e *CheckpointError) Unwrap() error { return e.Cause }
