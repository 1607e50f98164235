package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"iter"
	"reflect"
	"sync"
	"time"

	"github.com/ryansmccoy/feedspine"
)

// FileSnapshot records a prior parse of a file-shaped feed: its content
// hash, row count, and when it was captured. Kept in the adapter package
// rather than the root package because it is file-adapter specific, not
// a cross-cutting domain type (grounded on original_source's
// feedspine/adapter/file.py FileSnapshot class).
type FileSnapshot struct {
	Path        string                 `json:"path"`
	ContentHash string                 `json:"content_hash"`
	FetchedAt   time.Time              `json:"fetched_at"`
	RowCount    int                    `json:"row_count"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// HasChanged reports whether other's content hash differs from s's,
// mirroring the original's has_changed comparison.
func (s FileSnapshot) HasChanged(other FileSnapshot) bool {
	return s.ContentHash != other.ContentHash
}

func hashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// FileFetcher retrieves a file-shaped feed's raw bytes (an HTTP GET, an
// os.ReadFile, an S3 download — the adapter doesn't care).
type FileFetcher func(ctx context.Context) ([]byte, error)

// RowParser splits a file's raw bytes into parsed rows, one map per row
// (e.g. CSV lines, fixed-width index records, one JSON object per line).
type RowParser func(content []byte) ([]map[string]interface{}, error)

// RowConverter builds a RecordCandidate from one parsed row and its
// 0-based position in the file.
type RowConverter func(row map[string]interface{}, index int) (*feedspine.RecordCandidate, error)

// FileFeedAdapter serves a file-shaped feed (index files, CSV dumps, ...):
// it fetches the whole file, parses it into rows, and yields one
// candidate per row, each carrying its row index (§3.1/§4.3 "file
// snapshot"; original_source's FileFeedAdapter translated from async
// generator methods into plain functions the struct holds). When
// TrackChanges is set and the file's content hash matches the last
// fetch, Fetch yields nothing.
type FileFeedAdapter struct {
	FeedName     string
	FetchFile    FileFetcher
	ParseRows    RowParser
	ToCandidate  RowConverter
	TrackChanges bool

	mu           sync.Mutex
	lastSnapshot *FileSnapshot
	info         feedspine.AdapterInfo
}

var _ feedspine.FeedAdapter = (*FileFeedAdapter)(nil)

// NewFileFeedAdapter builds a FileFeedAdapter with change tracking on by
// default, matching the original's track_changes=True default.
func NewFileFeedAdapter(feedName string, fetch FileFetcher, parse RowParser, toCandidate RowConverter) *FileFeedAdapter {
	return &FileFeedAdapter{
		FeedName:     feedName,
		FetchFile:    fetch,
		ParseRows:    parse,
		ToCandidate:  toCandidate,
		TrackChanges: true,
	}
}

func (f *FileFeedAdapter) Name() string { return f.FeedName }

func (f *FileFeedAdapter) Initialize(ctx context.Context) error { return nil }

func (f *FileFeedAdapter) Close(ctx context.Context) error { return nil }

// LastSnapshot returns the snapshot recorded by the most recent Fetch, or
// nil before any successful fetch (§3.1 FileSnapshot accessor).
func (f *FileFeedAdapter) LastSnapshot() *FileSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastSnapshot == nil {
		return nil
	}
	cp := *f.lastSnapshot
	return &cp
}

func (f *FileFeedAdapter) Fetch(ctx context.Context) iter.Seq2[*feedspine.RecordCandidate, error] {
	return func(yield func(*feedspine.RecordCandidate, error) bool) {
		content, err := f.FetchFile(ctx)
		if err != nil {
			f.recordError()
			yield(nil, &feedspine.FeedError{Adapter: f.FeedName, Cause: err})
			return
		}
		hash := hashBytes(content)

		f.mu.Lock()
		unchanged := f.TrackChanges && f.lastSnapshot != nil && f.lastSnapshot.ContentHash == hash
		f.mu.Unlock()
		if unchanged {
			return
		}

		rows, err := f.ParseRows(content)
		if err != nil {
			f.recordError()
			yield(nil, &feedspine.FeedError{Adapter: f.FeedName, Cause: err})
			return
		}

		for index, row := range rows {
			select {
			case <-ctx.Done():
				return
			default:
			}

			candidate, err := f.ToCandidate(row, index)
			if err != nil {
				f.recordError()
				if !yield(nil, &feedspine.FeedError{Adapter: f.FeedName, Cause: err}) {
					return
				}
				continue
			}

			f.mu.Lock()
			f.info.ItemCount++
			f.mu.Unlock()

			if !yield(candidate, nil) {
				return
			}
		}

		f.mu.Lock()
		f.lastSnapshot = &FileSnapshot{Path: f.FeedName, ContentHash: hash, FetchedAt: time.Now(), RowCount: len(rows)}
		f.mu.Unlock()
	}
}

func (f *FileFeedAdapter) recordError() {
	f.mu.Lock()
	f.info.ErrorCount++
	f.mu.Unlock()
}

func (f *FileFeedAdapter) Info() feedspine.AdapterInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info
}

// RowKeyFunc extracts the unique diff key from a parsed row, e.g. a
// filing accession number or an index's primary column.
type RowKeyFunc func(row map[string]interface{}) string

// SnapshotDiff reports the differences between two row-keyed parses of a
// file-shaped feed (§4.3 "diffable file"), grounded on original_source's
// SnapshotDiff (file.py).
type SnapshotDiff struct {
	Added          map[string]map[string]interface{}
	Removed        map[string]map[string]interface{}
	Modified       map[string][2]map[string]interface{} // [previous, current]
	UnchangedCount int
}

func newSnapshotDiff() *SnapshotDiff {
	return &SnapshotDiff{
		Added:    make(map[string]map[string]interface{}),
		Removed:  make(map[string]map[string]interface{}),
		Modified: make(map[string][2]map[string]interface{}),
	}
}

// HasChanges reports whether the diff contains any added, removed, or
// modified rows.
func (d *SnapshotDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Modified) > 0
}

// Summary returns counts for added, removed, modified, and unchanged
// rows (§ Scenario F "compareSnapshots.summary").
func (d *SnapshotDiff) Summary() map[string]int {
	return map[string]int{
		"added":     len(d.Added),
		"removed":   len(d.Removed),
		"modified":  len(d.Modified),
		"unchanged": d.UnchangedCount,
	}
}

// DiffableFileAdapter extends FileFeedAdapter with row-keyed diff
// tracking across fetches: ComputeDiff builds the current parsed map and
// compares it against the previous baseline; FetchDiffOnly emits
// candidates only for added and modified rows and commits the new
// baseline; CommitSnapshot/ResetBaseline give callers manual control
// over that baseline (§4.3 "diffable file"; original_source's
// DiffableFileFeedAdapter).
type DiffableFileAdapter struct {
	*FileFeedAdapter
	RowKey RowKeyFunc

	diffMu       sync.Mutex
	previousData map[string]map[string]interface{}
	currentData  map[string]map[string]interface{}
}

var _ feedspine.FeedAdapter = (*DiffableFileAdapter)(nil)

// NewDiffableFileAdapter builds a DiffableFileAdapter with an empty diff
// baseline; the first ComputeDiff/FetchDiffOnly call treats every row as
// added.
func NewDiffableFileAdapter(feedName string, fetch FileFetcher, parse RowParser, toCandidate RowConverter, rowKey RowKeyFunc) *DiffableFileAdapter {
	return &DiffableFileAdapter{
		FileFeedAdapter: NewFileFeedAdapter(feedName, fetch, parse, toCandidate),
		RowKey:          rowKey,
		previousData:    make(map[string]map[string]interface{}),
		currentData:     make(map[string]map[string]interface{}),
	}
}

// ComputeDiff fetches and parses the current file, builds its row-keyed
// map, and diffs it against the previous baseline. It does not itself
// promote the baseline; use FetchDiffOnly or CommitSnapshot for that.
func (d *DiffableFileAdapter) ComputeDiff(ctx context.Context) (*SnapshotDiff, error) {
	content, err := d.FetchFile(ctx)
	if err != nil {
		d.recordError()
		return nil, &feedspine.FeedError{Adapter: d.FeedName, Cause: err}
	}
	rows, err := d.ParseRows(content)
	if err != nil {
		d.recordError()
		return nil, &feedspine.FeedError{Adapter: d.FeedName, Cause: err}
	}

	current := make(map[string]map[string]interface{}, len(rows))
	for _, row := range rows {
		current[d.RowKey(row)] = row
	}

	d.diffMu.Lock()
	previous := d.previousData
	d.currentData = current
	d.diffMu.Unlock()

	diff := newSnapshotDiff()
	for key, row := range current {
		prevRow, existed := previous[key]
		switch {
		case !existed:
			diff.Added[key] = row
		case reflect.DeepEqual(prevRow, row):
			diff.UnchangedCount++
		default:
			diff.Modified[key] = [2]map[string]interface{}{prevRow, row}
		}
	}
	for key, row := range previous {
		if _, stillPresent := current[key]; !stillPresent {
			diff.Removed[key] = row
		}
	}
	return diff, nil
}

// FetchDiffOnly computes the diff against the current baseline, yields a
// candidate for every added and modified row only, then commits the
// current parse as the new baseline — mirroring fetch_diff_only's
// auto-commit in file.py.
func (d *DiffableFileAdapter) FetchDiffOnly(ctx context.Context) iter.Seq2[*feedspine.RecordCandidate, error] {
	return func(yield func(*feedspine.RecordCandidate, error) bool) {
		diff, err := d.ComputeDiff(ctx)
		if err != nil {
			yield(nil, err)
			return
		}

		index := 0
		emit := func(row map[string]interface{}) bool {
			candidate, err := d.ToCandidate(row, index)
			index++
			if err != nil {
				d.recordError()
				if !yield(nil, &feedspine.FeedError{Adapter: d.FeedName, Cause: err}) {
					return false
				}
				return true
			}
			d.mu.Lock()
			d.info.ItemCount++
			d.mu.Unlock()
			return yield(candidate, nil)
		}

		for _, row := range diff.Added {
			if !emit(row) {
				return
			}
		}
		for _, pair := range diff.Modified {
			if !emit(pair[1]) {
				return
			}
		}

		d.CommitSnapshot()
	}
}

// CommitSnapshot promotes the current parsed map to the diff baseline,
// for callers that call ComputeDiff directly rather than consuming
// FetchDiffOnly.
func (d *DiffableFileAdapter) CommitSnapshot() {
	d.diffMu.Lock()
	defer d.diffMu.Unlock()
	d.previousData = d.currentData
}

// ResetBaseline clears diff state so the next ComputeDiff/FetchDiffOnly
// call treats every row as newly added.
func (d *DiffableFileAdapter) ResetBaseline() {
	d.diffMu.Lock()
	defer d.diffMu.Unlock()
	d.previousData = make(map[string]map[string]interface{})
	d.currentData = make(map[string]map[string]interface{})
}
