// Package emit provides the pluggable observability sink for FeedSpine
// collection runs. The Pipeline reports its stages through the Emitter
// interface rather than owning a logger, and an Orchestrator hands its
// Emitter to every Pipeline it builds. CheckpointManager and Scheduler
// do not emit events.
package emit

// Stage identifies which part of a collection run produced an Event.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageFilter     Stage = "filter"
	StageTransform  Stage = "transform"
	StageDedupe     Stage = "dedupe"
	StageStore      Stage = "store"
	StageEnrich     Stage = "enrich"
	StageCheckpoint Stage = "checkpoint"
	StageSchedule   Stage = "schedule"
	StageRun        Stage = "run"
)

// Event is one observability record. FeedName and RunID identify which
// FeedRun produced it; Stage identifies which pipeline step; Msg is a
// short human-readable description ("record_new", "http_retry",
// "checkpoint_saved", ...); Meta carries stage-specific structured detail.
type Event struct {
	RunID    string
	FeedName string
	Stage    Stage
	Msg      string
	Meta     map[string]interface{}
}
