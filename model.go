// Package feedspine provides the collection core: the pipeline that drives
// feed adapters through fetch, dedup, sighting recording, layered storage,
// and checkpointing.
package feedspine

import "time"

// Layer is a data-maturity tier. Records begin at LayerBronze; enrichers
// create new versions at higher layers. The order Bronze < Silver < Gold
// is total and layer promotion is monotonic (never demoted).
type Layer int

const (
	LayerBronze Layer = iota
	LayerSilver
	LayerGold
)

// String renders the layer using its lowercase wire name.
func (l Layer) String() string {
	switch l {
	case LayerBronze:
		return "bronze"
	case LayerSilver:
		return "silver"
	case LayerGold:
		return "gold"
	default:
		return "unknown"
	}
}

// ParseLayer parses a wire-form layer name produced by Layer.String.
func ParseLayer(s string) (Layer, error) {
	switch s {
	case "bronze":
		return LayerBronze, nil
	case "silver":
		return LayerSilver, nil
	case "gold":
		return LayerGold, nil
	default:
		return 0, &ValidationError{Field: "layer", Reason: "unknown layer " + s}
	}
}

// Metadata is captured on every record and candidate: where it came from,
// when it was observed, and an open bag of source-specific extras.
type Metadata struct {
	Source     string            `json:"source"`
	SourceType string            `json:"source_type,omitempty"`
	CapturedAt time.Time         `json:"captured_at"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// RecordCandidate is what an adapter produces before dedup. NaturalKey is
// normalized at construction time via NormalizeNaturalKey; callers should
// use NewRecordCandidate rather than building the struct literal directly
// so that normalization and length validation always run.
type RecordCandidate struct {
	NaturalKey  string                 `json:"natural_key"`
	PublishedAt time.Time              `json:"published_at"`
	Content     map[string]interface{} `json:"content"`
	Metadata    Metadata               `json:"metadata"`
}

// MaxNaturalKeyLength is the inclusive upper bound on a normalized natural
// key (§8 boundary behavior: 512 accepted, 513 rejected).
const MaxNaturalKeyLength = 512

// NewRecordCandidate constructs a RecordCandidate, normalizing naturalKey
// and rejecting keys that are empty or exceed MaxNaturalKeyLength after
// normalization.
func NewRecordCandidate(naturalKey string, publishedAt time.Time, content map[string]interface{}, meta Metadata) (*RecordCandidate, error) {
	key, err := NormalizeNaturalKey(naturalKey)
	if err != nil {
		return nil, err
	}
	if content == nil {
		content = map[string]interface{}{}
	}
	return &RecordCandidate{
		NaturalKey:  key,
		PublishedAt: publishedAt,
		Content:     content,
		Metadata:    meta,
	}, nil
}

// Record is a persisted, identified entity: the post-dedup, stored form of
// a RecordCandidate. Layer promotion (§3.2 invariant 5, Open Question in
// SPEC_FULL.md) is modeled here as a new Version of the same ID rather than
// a new ID, so natural-key uniqueness (invariant 1) reduces to a single
// unique index.
type Record struct {
	ID           string                 `json:"id"`
	NaturalKey   string                 `json:"natural_key"`
	Layer        Layer                  `json:"layer"`
	Content      map[string]interface{} `json:"content"`
	Metadata     Metadata               `json:"metadata"`
	PublishedAt  time.Time              `json:"published_at"`
	CapturedAt   time.Time              `json:"captured_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	Version      int                    `json:"version"`
	FirstSeenAt  time.Time              `json:"first_seen_at"`
	LastSeenAt   time.Time              `json:"last_seen_at"`
	SeenCount    int                    `json:"seen_count"`
}

// Clone returns a deep-enough copy of the record suitable for passing to a
// Storage implementation without aliasing the caller's Content/Metadata maps.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Content = cloneMap(r.Content)
	cp.Metadata = r.Metadata
	cp.Metadata.Extra = cloneStringMap(r.Metadata.Extra)
	return &cp
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Sighting is one observation of a natural_key from a named source. Sightings
// are append-only: the core never mutates or deletes one once recorded.
type Sighting struct {
	ID          string   `json:"id"`
	NaturalKey  string   `json:"natural_key"`
	RecordID    string   `json:"record_id,omitempty"`
	Source      string   `json:"source"`
	SeenAt      time.Time `json:"seen_at"`
	IsNew       bool     `json:"is_new"`
	RawDataHash string   `json:"raw_data_hash,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

// FeedRunStatus is the lifecycle state of one FeedRun.
type FeedRunStatus string

const (
	FeedRunPending   FeedRunStatus = "pending"
	FeedRunRunning   FeedRunStatus = "running"
	FeedRunSuccess   FeedRunStatus = "success"
	FeedRunFailed    FeedRunStatus = "failed"
	FeedRunCancelled FeedRunStatus = "cancelled"
)

// FeedRun is one execution of one adapter. The Pipeline and Orchestrator
// in this module neither create nor update FeedRun values; a Pipeline
// run reports its counters as PipelineStats.
type FeedRun struct {
	ID                 string            `json:"id"`
	FeedName           string            `json:"feed_name"`
	Status             FeedRunStatus     `json:"status"`
	StartedAt          time.Time         `json:"started_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	Processed          int               `json:"processed"`
	New                int               `json:"new"`
	Duplicate          int               `json:"duplicate"`
	Failed             int               `json:"failed"`
	Errors             []string          `json:"errors,omitempty"`
	ErrorType          string            `json:"error_type,omitempty"`
	CheckpointPosition map[string]any    `json:"checkpoint_position,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// MaxFeedRunErrors bounds FeedRun.Errors growth on very long runs (§4.4
// step 4: "implementations MAY cap at 1024 entries").
const MaxFeedRunErrors = 1024

// AppendError records one per-candidate error string, capping growth.
func (fr *FeedRun) AppendError(msg string) {
	if len(fr.Errors) >= MaxFeedRunErrors {
		return
	}
	fr.Errors = append(fr.Errors, msg)
}

// Complete marks the run terminal. status must not be Pending or Running.
func (fr *FeedRun) Complete(status FeedRunStatus, now time.Time) {
	fr.Status = status
	fr.CompletedAt = &now
}

// ToDict/FromDict round-trip the FeedRun through a plain map, per §8's
// "FeedRun.fromDict(fr.toDict()) equals fr field-by-field" property. Field
// types are preserved exactly rather than going through an intermediate
// JSON round-trip so equality holds without custom comparers.
func (fr FeedRun) ToDict() map[string]any {
	return map[string]any{
		"id":                  fr.ID,
		"feed_name":           fr.FeedName,
		"status":              fr.Status,
		"started_at":          fr.StartedAt,
		"completed_at":        fr.CompletedAt,
		"processed":           fr.Processed,
		"new":                 fr.New,
		"duplicate":           fr.Duplicate,
		"failed":              fr.Failed,
		"errors":              fr.Errors,
		"error_type":          fr.ErrorType,
		"checkpoint_position": fr.CheckpointPosition,
		"metadata":            fr.Metadata,
	}
}

// FeedRunFromDict is the inverse of FeedRun.ToDict.
func FeedRunFromDict(d map[string]any) FeedRun {
	fr := FeedRun{}
	if v, ok := d["id"].(string); ok {
		fr.ID = v
	}
	if v, ok := d["feed_name"].(string); ok {
		fr.FeedName = v
	}
	if v, ok := d["status"].(FeedRunStatus); ok {
		fr.Status = v
	}
	if v, ok := d["started_at"].(time.Time); ok {
		fr.StartedAt = v
	}
	if v, ok := d["completed_at"].(*time.Time); ok {
		fr.CompletedAt = v
	}
	if v, ok := d["processed"].(int); ok {
		fr.Processed = v
	}
	if v, ok := d["new"].(int); ok {
		fr.New = v
	}
	if v, ok := d["duplicate"].(int); ok {
		fr.Duplicate = v
	}
	if v, ok := d["failed"].(int); ok {
		fr.Failed = v
	}
	if v, ok := d["errors"].([]string); ok {
		fr.Errors = v
	}
	if v, ok := d["error_type"].(string); ok {
		fr.ErrorType = v
	}
	if v, ok := d["checkpoint_position"].(map[string]any); ok {
		fr.CheckpointPosition = v
	}
	if v, ok := d["metadata"].(map[string]string); ok {
		fr.Metadata = v
	}
	return fr
}

// Checkpoint is a resumable progress marker, owned by the CheckpointManager
// during a run and by a CheckpointStore at rest.
type Checkpoint struct {
	CollectionID string            `json:"collection_id"`
	FeedName     string            `json:"feed_name"`
	Position     map[string]any    `json:"position,omitempty"`
	Processed    int               `json:"processed"`
	New          int               `json:"new"`
	Duplicate    int               `json:"duplicate"`
	Failed       int               `json:"failed"`
	StartedAt    time.Time         `json:"started_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	IsComplete   bool              `json:"is_complete"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ToDict/FromDict round-trip Checkpoint through a plain map (§8).
func (c Checkpoint) ToDict() map[string]any {
	return map[string]any{
		"collection_id": c.CollectionID,
		"feed_name":     c.FeedName,
		"position":      c.Position,
		"processed":     c.Processed,
		"new":           c.New,
		"duplicate":     c.Duplicate,
		"failed":        c.Failed,
		"started_at":    c.StartedAt,
		"updated_at":    c.UpdatedAt,
		"is_complete":   c.IsComplete,
		"metadata":      c.Metadata,
	}
}

// CheckpointFromDict is the inverse of Checkpoint.ToDict.
func CheckpointFromDict(d map[string]any) Checkpoint {
	c := Checkpoint{}
	if v, ok := d["collection_id"].(string); ok {
		c.CollectionID = v
	}
	if v, ok := d["feed_name"].(string); ok {
		c.FeedName = v
	}
	if v, ok := d["position"].(map[string]any); ok {
		c.Position = v
	}
	if v, ok := d["processed"].(int); ok {
		c.Processed = v
	}
	if v, ok := d["new"].(int); ok {
		c.New = v
	}
	if v, ok := d["duplicate"].(int); ok {
		c.Duplicate = v
	}
	if v, ok := d["failed"].(int); ok {
		c.Failed = v
	}
	if v, ok := d["started_at"].(time.Time); ok {
		c.StartedAt = v
	}
	if v, ok := d["updated_at"].(time.Time); ok {
		c.UpdatedAt = v
	}
	if v, ok := d["is_complete"].(bool); ok {
		c.IsComplete = v
	}
	if v, ok := d["metadata"].(map[string]string); ok {
		c.Metadata = v
	}
	return c
}

// PipelineStats is the result of one Pipeline.Run call (§4.4).
type PipelineStats struct {
	FeedName   string        `json:"feed_name"`
	Processed  int           `json:"processed"`
	New        int           `json:"new"`
	Duplicates int           `json:"duplicates"`
	Errors     int           `json:"errors"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ms"`
}

// CollectionResult aggregates PipelineStats across every feed an
// Orchestrator.Collect or RunAll call drove, keyed by adapter name (§4.8).
type CollectionResult struct {
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt time.Time                `json:"completed_at"`
	Stats       map[string]PipelineStats `json:"stats"`
	Errors      []FeedError              `json:"errors,omitempty"`
}

// Success reports whether every feed's stats carried zero errors and no
// entry was recorded in Errors (§7 "User-visible failure").
func (r CollectionResult) Success() bool {
	if len(r.Errors) > 0 {
		return false
	}
	for _, s := range r.Stats {
		if s.Errors > 0 {
			return false
		}
	}
	return true
}

// TotalNew and TotalDuplicates sum PipelineStats across all fed feeds;
// used by end-to-end scenario assertions (§8 Scenario A).
func (r CollectionResult) TotalNew() int {
	total := 0
	for _, s := range r.Stats {
		total += s.New
	}
	return total
}

func (r CollectionResult) TotalDuplicates() int {
	total := 0
	for _, s := range r.Stats {
		total += s.Duplicates
	}
	return total
}
