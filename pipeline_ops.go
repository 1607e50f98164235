package feedspine

import (
	"context"
	"fmt"
)

// PipelineOperation is the capability marker every optional pipeline hook
// implements. A concrete operation implements one or more of the
// capability interfaces below (FilterOperation, TransformOperation, ...);
// Pipeline.Run type-asserts each configured operation against every
// capability it supports rather than forcing a single do-everything
// interface, the same way the teacher's NodePolicy composes independent
// concerns (retry, side effects) on one node instead of one god-interface.
type PipelineOperation interface {
	Name() string
}

// FilterOperation drops a candidate before dedup when Keep returns false.
// Operations run in configuration order; the first false short-circuits
// the rest.
type FilterOperation interface {
	PipelineOperation
	Keep(ctx context.Context, candidate *RecordCandidate) (bool, error)
}

// TransformOperation rewrites a candidate before dedup (e.g. normalizing
// content fields). Operations run in configuration order, each receiving
// the previous one's output.
type TransformOperation interface {
	PipelineOperation
	Transform(ctx context.Context, candidate *RecordCandidate) (*RecordCandidate, error)
}

// EnrichOperation wraps an Enricher into the pipeline as a synchronous
// post-store step, for callers that want enrichment inline rather than as
// a separate out-of-band process (§4.5 notes both are valid).
type EnrichOperation interface {
	PipelineOperation
	Enrich(ctx context.Context, record *Record) error
}

// NotifyOperation is invoked once per newly-first-seen record, in addition
// to (not instead of) the Pipeline's own configured Notifier (§4.4 step
// 3f). Use this for per-feed notification routing that the shared
// Notifier doesn't cover.
type NotifyOperation interface {
	PipelineOperation
	NotifyRecord(ctx context.Context, record *Record) error
}

// DedupeKeyOperation overrides the key used to look up an existing record,
// for feeds where the dedup identity isn't simply RecordCandidate's own
// NaturalKey (e.g. composing several content fields).
type DedupeKeyOperation interface {
	PipelineOperation
	DedupeKey(candidate *RecordCandidate) string
}

// CheckpointEveryOperation makes the Pipeline force a CheckpointManager
// Save after every N processed candidates, N being CheckpointEvery().
// While a positive N is configured the Pipeline does not call MaybeSave,
// so the manager's own save cadence is not used; zero or less leaves
// MaybeSave in place.
type CheckpointEveryOperation interface {
	PipelineOperation
	CheckpointEvery() int
}

// runFilters returns false if any configured FilterOperation rejects
// candidate.
func runFilters(ctx context.Context, ops []PipelineOperation, candidate *RecordCandidate) (bool, error) {
	for _, op := range ops {
		f, ok := op.(FilterOperation)
		if !ok {
			continue
		}
		keep, err := f.Keep(ctx, candidate)
		if err != nil {
			return false, fmt.Errorf("filter %s: %w", op.Name(), err)
		}
		if !keep {
			return false, nil
		}
	}
	return true, nil
}

// runTransforms threads candidate through every configured
// TransformOperation in order.
func runTransforms(ctx context.Context, ops []PipelineOperation, candidate *RecordCandidate) (*RecordCandidate, error) {
	cur := candidate
	for _, op := range ops {
		t, ok := op.(TransformOperation)
		if !ok {
			continue
		}
		next, err := t.Transform(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("transform %s: %w", op.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// runEnrichers applies every configured EnrichOperation to a freshly
// stored record, best-effort: the first error aborts remaining enrichers.
func runEnrichers(ctx context.Context, ops []PipelineOperation, record *Record) error {
	for _, op := range ops {
		e, ok := op.(EnrichOperation)
		if !ok {
			continue
		}
		if err := e.Enrich(ctx, record); err != nil {
			return fmt.Errorf("enrich %s: %w", op.Name(), err)
		}
	}
	return nil
}

// runNotifyOps invokes every configured NotifyOperation for a new record.
func runNotifyOps(ctx context.Context, ops []PipelineOperation, record *Record) error {
	for _, op := range ops {
		n, ok := op.(NotifyOperation)
		if !ok {
			continue
		}
		if err := n.NotifyRecord(ctx, record); err != nil {
			return fmt.Errorf("notify %s: %w", op.Name(), err)
		}
	}
	return nil
}

func dedupeKeyFor(ops []PipelineOperation, candidate *RecordCandidate) string {
	for _, op := range ops {
		if d, ok := op.(DedupeKeyOperation); ok {
			return d.DedupeKey(candidate)
		}
	}
	return candidate.NaturalKey
}

func checkpointEveryFor(ops []PipelineOperation, fallback int) int {
	for _, op := range ops {
		if c, ok := op.(CheckpointEveryOperation); ok {
			return c.CheckpointEvery()
		}
	}
	return fallback
}
