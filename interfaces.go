package feedspine

import (
	"context"
	"iter"
	"time"
)

// FilterOp is a comparison operator supported by Storage.Query / Count
// filters (§4.1).
type FilterOp string

const (
	OpEq      FilterOp = "eq"
	OpIn      FilterOp = "in"
	OpLike    FilterOp = "like"
	OpGt      FilterOp = "gt"
	OpLt      FilterOp = "lt"
	OpGte     FilterOp = "gte"
	OpLte     FilterOp = "lte"
	OpNull    FilterOp = "null"
	OpNotNull FilterOp = "not_null"
)

// Filter is one query predicate. Field may be a top-level Record attribute
// name ("natural_key", "layer", ...) or a dotted content path
// ("content.field") per §4.1.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// QueryOptions bounds and shapes a Storage.Query call.
type QueryOptions struct {
	Layer   *Layer
	Filters []Filter
	OrderBy string
	Limit   int
	Offset  int
}

// OnConflict governs StoreBatch behavior when a batch entry's natural_key
// already exists (§4.1).
type OnConflict string

const (
	OnConflictSkip   OnConflict = "skip"
	OnConflictUpdate OnConflict = "update"
	OnConflictError  OnConflict = "error"
)

// Storage is the durable persistence boundary for records and sightings:
// upsert by id, layered/paginated/filtered reads, and idempotent batch
// writes (§4.1). Implementations MUST surface every failure as a
// *StorageError rather than swallow it, and MUST run each batch in its own
// transaction (no partial commits).
type Storage interface {
	// Store upserts a record by ID, writing it exactly as given: Version,
	// UpdatedAt and the sighting-tracking fields are stored as the caller
	// set them. Store does not bump Version or refresh UpdatedAt itself.
	Store(ctx context.Context, record *Record) error

	// Get returns the record for id, or (nil, nil) if it does not exist.
	// layer, when non-nil, restricts the lookup to that layer.
	Get(ctx context.Context, id string, layer *Layer) (*Record, error)

	// GetByNaturalKey looks up by the normalized natural key.
	GetByNaturalKey(ctx context.Context, naturalKey string) (*Record, error)

	Exists(ctx context.Context, id string, layer *Layer) (bool, error)
	ExistsByNaturalKey(ctx context.Context, naturalKey string) (bool, error)

	// Delete returns true iff a record existed and was removed.
	Delete(ctx context.Context, id string, layer *Layer) (bool, error)

	// Query returns a lazily-pulled sequence of matching records, honoring
	// opts.Limit/Offset for pagination. Iteration order is opts.OrderBy
	// when set, otherwise insertion order.
	Query(ctx context.Context, opts QueryOptions) iter.Seq2[*Record, error]

	Count(ctx context.Context, layer *Layer, filters []Filter) (int, error)

	// RecordSighting appends a Sighting and returns true iff its natural
	// key was previously unseen. It also sets LastSeenAt on the related
	// Record, if one exists (MemStore additionally sets FirstSeenAt on a
	// first sighting). It does not change SeenCount; the Pipeline keeps
	// SeenCount up to date through Store.
	RecordSighting(ctx context.Context, sighting *Sighting) (bool, error)

	// GetSightings returns every sighting of naturalKey in chronological
	// (seen_at, then insertion) order.
	GetSightings(ctx context.Context, naturalKey string) ([]Sighting, error)

	// StoreBatch upserts records batchSize at a time, each batch atomic.
	// Returns the total inserted-or-updated count. With OnConflictError,
	// the first duplicate aborts the whole call.
	StoreBatch(ctx context.Context, records []*Record, batchSize int, onConflict OnConflict) (int, error)

	DeleteBatch(ctx context.Context, ids []string, batchSize int) (int, error)
}

// CheckpointStore persists Checkpoint values at rest, independent of the
// CheckpointManager that owns the current checkpoint during a run (§4.6).
type CheckpointStore interface {
	Save(ctx context.Context, checkpoint Checkpoint) error

	// Load returns (nil, nil) if collectionID is unknown.
	Load(ctx context.Context, collectionID string) (*Checkpoint, error)

	Delete(ctx context.Context, collectionID string) (bool, error)

	// ListIncomplete returns every checkpoint with IsComplete == false,
	// optionally restricted to feedName (empty string means all feeds).
	ListIncomplete(ctx context.Context, feedName string) ([]Checkpoint, error)
}

// AdapterInfo summarizes an adapter's lifetime activity (§4.3).
type AdapterInfo struct {
	Name          string
	LastFetchAt   time.Time
	ItemCount     int
	ErrorCount    int
}

// FeedAdapter converts one external source into a lazy sequence of
// RecordCandidate values (§4.3). Implementations MUST apply their own
// inter-fetch rate limit before the first upstream call and MUST NOT retry
// internally; retry is the caller's responsibility. A single FeedAdapter
// instance is not safe for concurrent Fetch calls.
type FeedAdapter interface {
	// Name uniquely identifies the adapter; used as Sighting.Source and
	// the FeedRun/Scheduler key.
	Name() string

	Initialize(ctx context.Context) error
	Close(ctx context.Context) error

	// Fetch returns a lazily-pulled sequence of candidates. Per-item
	// construction errors are isolated (yielded as (nil, err), counted,
	// and iteration continues); upstream transport errors abort the
	// sequence with a *FeedError and stop iteration.
	Fetch(ctx context.Context) iter.Seq2[*RecordCandidate, error]

	Info() AdapterInfo
}

// EnrichmentStatus is the outcome of one Enricher.Enrich call (§4.5).
type EnrichmentStatus string

const (
	EnrichmentSuccess EnrichmentStatus = "success"
	EnrichmentSkipped EnrichmentStatus = "skipped"
	EnrichmentFailed  EnrichmentStatus = "failed"
	EnrichmentPartial EnrichmentStatus = "partial"
)

// EnrichmentResult reports what an Enricher did to a Record.
type EnrichmentResult struct {
	Status        EnrichmentStatus
	SourceLayer   Layer
	TargetLayer   Layer
	FieldsAdded   []string
	FieldsUpdated []string
	Duration      time.Duration
}

// Enricher is the boundary-only interface for layer-promoting record
// enrichment (§4.5). It may mutate record in place; layer promotion is the
// enricher's decision. No core code calls an Enricher or compares its
// requested TargetLayer with the record's current layer, so the
// monotonicity invariant (§3.2-5) is not enforced by the core.
type Enricher interface {
	Name() string
	CanEnrich(record *Record) bool
	Enrich(ctx context.Context, record *Record) (EnrichmentResult, error)
}
