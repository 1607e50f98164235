package feedspine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/ryansmccoy/feedspine/emit"
	"github.com/ryansmccoy/feedspine/metrics"
	"github.com/ryansmccoy/feedspine/notifier"
)

// pipelineConfig holds every optional Pipeline dependency. Zero value of
// each field is replaced with a no-op default in NewPipeline, mirroring
// the teacher's functional-options config pattern (graph/options.go).
type pipelineConfig struct {
	emitter    emit.Emitter
	metrics    metrics.Metrics
	notifier   notifier.Notifier
	ops        []PipelineOperation
	now        func() time.Time
	newID      func() string
	checkpoint *CheckpointManager
}

// Option configures a Pipeline at construction time.
type Option func(*pipelineConfig) error

// WithEmitter sets the Emitter every pipeline stage reports through.
func WithEmitter(e emit.Emitter) Option {
	return func(c *pipelineConfig) error {
		if e == nil {
			return &ValidationError{Field: "emitter", Reason: "must not be nil"}
		}
		c.emitter = e
		return nil
	}
}

// WithMetrics sets the Metrics sink the pipeline records through.
func WithMetrics(m metrics.Metrics) Option {
	return func(c *pipelineConfig) error {
		if m == nil {
			return &ValidationError{Field: "metrics", Reason: "must not be nil"}
		}
		c.metrics = m
		return nil
	}
}

// WithNotifier sets the Notifier invoked once per newly-first-seen
// record (§4.4 step 3f).
func WithNotifier(n notifier.Notifier) Option {
	return func(c *pipelineConfig) error {
		if n == nil {
			return &ValidationError{Field: "notifier", Reason: "must not be nil"}
		}
		c.notifier = n
		return nil
	}
}

// WithOperations appends optional PipelineOperation hooks (filters,
// transforms, inline enrichers, dedupe-key overrides).
func WithOperations(ops ...PipelineOperation) Option {
	return func(c *pipelineConfig) error {
		c.ops = append(c.ops, ops...)
		return nil
	}
}

// WithClock overrides time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *pipelineConfig) error {
		if now == nil {
			return &ValidationError{Field: "clock", Reason: "must not be nil"}
		}
		c.now = now
		return nil
	}
}

// WithIDFactory overrides the Record.ID generator, for deterministic
// tests. Defaults to uuid.NewString.
func WithIDFactory(newID func() string) Option {
	return func(c *pipelineConfig) error {
		if newID == nil {
			return &ValidationError{Field: "id_factory", Reason: "must not be nil"}
		}
		c.newID = newID
		return nil
	}
}

// WithCheckpointManager attaches a CheckpointManager the Pipeline updates
// after every candidate and periodically saves via MaybeSave (§4.6). The
// caller is responsible for Start/Resume before Run and Complete after;
// the Pipeline only advances counters and triggers saves, honoring a
// CheckpointEveryOperation's cadence when one is configured via
// WithOperations.
func WithCheckpointManager(m *CheckpointManager) Option {
	return func(c *pipelineConfig) error {
		if m == nil {
			return &ValidationError{Field: "checkpoint_manager", Reason: "must not be nil"}
		}
		c.checkpoint = m
		return nil
	}
}

// Pipeline drives candidates from one adapter through dedup, sighting
// recording, and layered storage (§4.4). A Pipeline is bound to one feed
// name and one Storage; an Orchestrator owns one Pipeline per registered
// FeedAdapter.
type Pipeline struct {
	feedName string
	storage  Storage
	cfg      pipelineConfig
}

// NewPipeline builds a Pipeline for feedName backed by storage.
func NewPipeline(feedName string, storage Storage, opts ...Option) (*Pipeline, error) {
	if feedName == "" {
		return nil, &ValidationError{Field: "feed_name", Reason: "must not be empty"}
	}
	if storage == nil {
		return nil, &ValidationError{Field: "storage", Reason: "must not be nil"}
	}
	cfg := pipelineConfig{
		emitter:  emit.Null(),
		metrics:  metrics.Null(),
		notifier: notifier.Null(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return &Pipeline{feedName: feedName, storage: storage, cfg: cfg}, nil
}

// Run pulls every candidate from candidates and applies the per-candidate
// dedup/sighting algorithm (§4.4):
//
//  1. Filter and transform the candidate through configured operations.
//  2. Look up an existing record by (possibly overridden) dedup key.
//  3. New key: mint a Record at LayerBronze, Store it, record an
//     IsNew=true Sighting, run inline enrichers, then notify.
//  4. Known key: refresh LastSeenAt/SeenCount on the existing record via
//     Store, record an IsNew=false Sighting. Content is not overwritten
//     by a duplicate sighting; only an Enricher may advance Layer/Version.
//  5. A per-candidate construction or storage error is isolated: it is
//     counted, emitted, and iteration continues. A *FeedError surfaced
//     by candidates' own error channel aborts the run.
//
// Run honors ctx cancellation between candidates, returning ErrCancelled
// wrapped with whatever stats were accumulated so far.
func (p *Pipeline) Run(ctx context.Context, candidates iter.Seq2[*RecordCandidate, error]) (PipelineStats, error) {
	stats := PipelineStats{FeedName: p.feedName, StartedAt: p.cfg.now()}
	checkpointEvery := checkpointEveryFor(p.cfg.ops, 0)
	sinceCheckpoint := 0

	var runErr error
	candidates(func(candidate *RecordCandidate, ferr error) bool {
		if ferr != nil {
			runErr = &FeedError{Adapter: p.feedName, Cause: ferr}
			return false
		}
		select {
		case <-ctx.Done():
			runErr = ErrCancelled
			return false
		default:
		}

		before := stats
		if err := p.processOne(ctx, candidate, &stats); err != nil {
			stats.Errors++
			p.cfg.metrics.RecordProcessed(p.feedName, "error")
			p.cfg.emitter.Emit(emit.Event{
				FeedName: p.feedName,
				Stage:    emit.StageStore,
				Msg:      "candidate_error",
				Meta:     map[string]interface{}{"error": err.Error()},
			})
		}
		stats.Processed++

		if p.cfg.checkpoint != nil {
			newCount := stats.New - before.New
			dupCount := stats.Duplicates - before.Duplicates
			failCount := stats.Errors - before.Errors
			if err := p.cfg.checkpoint.Update(nil, 1, newCount, dupCount, failCount); err != nil {
				p.cfg.emitter.Emit(emit.Event{FeedName: p.feedName, Stage: emit.StageCheckpoint, Msg: "checkpoint_update_error", Meta: map[string]interface{}{"error": err.Error()}})
			} else {
				sinceCheckpoint++
				saved := false
				var saveErr error
				switch {
				case checkpointEvery > 0 && sinceCheckpoint >= checkpointEvery:
					// A CheckpointEveryOperation overrides the manager's own
					// cadence entirely: force a save exactly every N
					// candidates and skip MaybeSave's independent timer.
					saveErr = p.cfg.checkpoint.Save(ctx)
					saved = saveErr == nil
					sinceCheckpoint = 0
				case checkpointEvery <= 0:
					saved, saveErr = p.cfg.checkpoint.MaybeSave(ctx)
				}
				if saveErr != nil {
					p.cfg.emitter.Emit(emit.Event{FeedName: p.feedName, Stage: emit.StageCheckpoint, Msg: "checkpoint_save_error", Meta: map[string]interface{}{"error": saveErr.Error()}})
				} else if saved {
					p.cfg.metrics.RecordCheckpointSave(p.feedName)
					p.cfg.emitter.Emit(emit.Event{FeedName: p.feedName, Stage: emit.StageCheckpoint, Msg: "checkpoint_saved"})
				}
			}
		}
		return true
	})

	stats.Duration = p.cfg.now().Sub(stats.StartedAt)
	if runErr != nil {
		return stats, runErr
	}
	return stats, nil
}

func (p *Pipeline) processOne(ctx context.Context, candidate *RecordCandidate, stats *PipelineStats) error {
	keep, err := runFilters(ctx, p.cfg.ops, candidate)
	if err != nil {
		return err
	}
	if !keep {
		p.cfg.emitter.Emit(emit.Event{FeedName: p.feedName, Stage: emit.StageFilter, Msg: "candidate_filtered"})
		return nil
	}

	candidate, err = runTransforms(ctx, p.cfg.ops, candidate)
	if err != nil {
		return err
	}

	dedupeKey := dedupeKeyFor(p.cfg.ops, candidate)
	existing, err := p.storage.GetByNaturalKey(ctx, dedupeKey)
	if err != nil {
		return &StorageError{Op: "GetByNaturalKey", Cause: err}
	}

	now := p.cfg.now()
	hash := contentHash(candidate.Content)
	isNew := existing == nil

	var record *Record
	if isNew {
		record = &Record{
			ID:          p.cfg.newID(),
			NaturalKey:  dedupeKey,
			Layer:       LayerBronze,
			Content:     candidate.Content,
			Metadata:    candidate.Metadata,
			PublishedAt: candidate.PublishedAt,
			CapturedAt:  now,
			UpdatedAt:   now,
			Version:     1,
			FirstSeenAt: now,
			LastSeenAt:  now,
			SeenCount:   1,
		}
	} else {
		record = existing.Clone()
		record.LastSeenAt = now
		record.SeenCount++
	}

	storeStart := p.cfg.now()
	if err := p.storage.Store(ctx, record); err != nil {
		return &StorageError{Op: "Store", Cause: err}
	}
	p.cfg.metrics.RecordStoreLatency(p.feedName, p.cfg.now().Sub(storeStart))

	sighting := &Sighting{
		ID:          p.cfg.newID(),
		NaturalKey:  dedupeKey,
		RecordID:    record.ID,
		Source:      p.feedName,
		SeenAt:      now,
		IsNew:       isNew,
		RawDataHash: hash,
		Metadata:    candidate.Metadata,
	}
	if _, err := p.storage.RecordSighting(ctx, sighting); err != nil {
		return &StorageError{Op: "RecordSighting", Cause: err}
	}

	if isNew {
		stats.New++
		p.cfg.metrics.RecordProcessed(p.feedName, "new")
		p.cfg.emitter.Emit(emit.Event{
			FeedName: p.feedName,
			Stage:    emit.StageStore,
			Msg:      "record_new",
			Meta:     map[string]interface{}{"record_id": record.ID, "natural_key": dedupeKey},
		})

		if err := runEnrichers(ctx, p.cfg.ops, record); err != nil {
			p.cfg.emitter.Emit(emit.Event{
				FeedName: p.feedName,
				Stage:    emit.StageEnrich,
				Msg:      "enrich_error",
				Meta:     map[string]interface{}{"error": err.Error()},
			})
		}

		if err := runNotifyOps(ctx, p.cfg.ops, record); err != nil {
			return err
		}
		if _, err := p.cfg.notifier.Send(ctx, notifier.Notification{
			Title:     titleFor(record, p.feedName),
			Message:   fmt.Sprintf("new record %s (%s)", record.ID, record.NaturalKey),
			Severity:  notifier.SeverityInfo,
			Tags:      []string{p.feedName},
			Timestamp: now,
		}); err != nil {
			p.cfg.emitter.Emit(emit.Event{
				FeedName: p.feedName,
				Stage:    emit.StageStore,
				Msg:      "notify_error",
				Meta:     map[string]interface{}{"error": err.Error()},
			})
		}
	} else {
		stats.Duplicates++
		p.cfg.metrics.RecordProcessed(p.feedName, "duplicate")
		p.cfg.emitter.Emit(emit.Event{
			FeedName: p.feedName,
			Stage:    emit.StageDedupe,
			Msg:      "record_duplicate",
			Meta:     map[string]interface{}{"record_id": record.ID, "natural_key": dedupeKey},
		})
	}

	return nil
}

// titleFor extracts a human-readable title for a new-record notification
// from the record's content when present, falling back to the feed name
// otherwise. The pipeline never inspects content beyond this.
func titleFor(record *Record, fallback string) string {
	if title, ok := record.Content["title"].(string); ok && title != "" {
		return title
	}
	return fallback
}

// contentHash returns the hex sha256 of content's canonical JSON encoding,
// used as Sighting.RawDataHash (§4.1 "sightings carry a hash of the raw
// payload so callers can tell a re-store apart from a bit-identical
// re-sighting without diffing the whole document").
func contentHash(content map[string]interface{}) string {
	data, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
