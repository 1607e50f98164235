package adapter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ryansmccoy/feedspine"
)

func TestKeyFromURLStripsQueryAndFragment(t *testing.T) {
	key, err := KeyFromURL("https://example.com/article?utm_source=rss#section-2")
	if err != nil {
		t.Fatalf("KeyFromURL: %v", err)
	}
	if key != "https://example.com/article" {
		t.Fatalf("key = %q, want %q", key, "https://example.com/article")
	}
}

func TestKeyFromCompositeJoinsWithDelimiter(t *testing.T) {
	key := KeyFromComposite("source-a", "12345")
	if key != "source-a\x1f12345" {
		t.Fatalf("unexpected composite key: %q", key)
	}
}

func TestKeyFromContentHashDeterministic(t *testing.T) {
	content := map[string]interface{}{"title": "hello", "id": 1}
	a, err := KeyFromContentHash(content)
	if err != nil {
		t.Fatalf("KeyFromContentHash: %v", err)
	}
	b, err := KeyFromContentHash(content)
	if err != nil {
		t.Fatalf("KeyFromContentHash: %v", err)
	}
	if a != b {
		t.Fatalf("expected stable hash for identical content, got %q and %q", a, b)
	}
}

func TestListAdapterYieldsEveryCandidateOnce(t *testing.T) {
	candidates := []*feedspine.RecordCandidate{
		{NaturalKey: "a"},
		{NaturalKey: "b"},
	}
	a := NewListAdapter("feed", candidates)

	var seen []string
	for c, err := range a.Fetch(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen = append(seen, c.NaturalKey)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(seen))
	}
	if a.Info().ItemCount != 2 {
		t.Fatalf("Info().ItemCount = %d, want 2", a.Info().ItemCount)
	}
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewListAdapter("feed-a", nil)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(NewListAdapter("feed-a", nil)); err == nil {
		t.Fatal("expected error registering duplicate adapter name")
	}
}

func TestRegistryClearRemovesEverything(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewListAdapter("feed-a", nil)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Clear()
	if _, err := r.Get("feed-a"); err == nil {
		t.Fatal("expected Get to fail after Clear")
	}
	if len(r.All()) != 0 {
		t.Fatalf("expected empty registry after Clear, got %d adapters", len(r.All()))
	}
}

// splitLinesParser turns each non-empty line of content into a row
// carrying that line's text, mirroring the original's line-split example
// (file.py's FileFeedAdapter doctest).
func splitLinesParser(content []byte) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	line := ""
	for _, b := range content {
		if b == '\n' {
			rows = append(rows, map[string]interface{}{"line": line})
			line = ""
			continue
		}
		line += string(b)
	}
	if line != "" {
		rows = append(rows, map[string]interface{}{"line": line})
	}
	return rows, nil
}

func lineToCandidate(row map[string]interface{}, index int) (*feedspine.RecordCandidate, error) {
	return feedspine.NewRecordCandidate(
		fmt.Sprintf("line-%d", index),
		time.Now(),
		row,
		feedspine.Metadata{Source: "file"},
	)
}

// TestFileFeedAdapterScenarioBUnchangedFileSnapshot mirrors the spec's
// Scenario B: the same three-line file fetched twice in a row stores 3
// records on the first run and 0 on the second, with LastSnapshot
// reporting the parsed row count.
func TestFileFeedAdapterScenarioBUnchangedFileSnapshot(t *testing.T) {
	content := []byte("row1\nrow2\nrow3")
	fetch := func(ctx context.Context) ([]byte, error) { return content, nil }

	a := NewFileFeedAdapter("index-file", fetch, splitLinesParser, lineToCandidate)

	var firstPass int
	for _, err := range a.Fetch(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error on first fetch: %v", err)
		}
		firstPass++
	}
	if firstPass != 3 {
		t.Fatalf("first fetch should yield 3 candidates, got %d", firstPass)
	}
	if snap := a.LastSnapshot(); snap == nil || snap.RowCount != 3 {
		t.Fatalf("LastSnapshot() = %+v, want RowCount 3", snap)
	}

	var secondPass int
	for _, err := range a.Fetch(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error on second fetch: %v", err)
		}
		secondPass++
	}
	if secondPass != 0 {
		t.Fatalf("second fetch of unchanged content should yield 0 candidates, got %d", secondPass)
	}
	if snap := a.LastSnapshot(); snap == nil || snap.RowCount != 3 {
		t.Fatalf("LastSnapshot() after unchanged refetch = %+v, want RowCount still 3", snap)
	}
}

func TestFileFeedAdapterEmitsRowIndexedCandidates(t *testing.T) {
	content := []byte("a\nb\nc")
	fetch := func(ctx context.Context) ([]byte, error) { return content, nil }
	a := NewFileFeedAdapter("index-file", fetch, splitLinesParser, lineToCandidate)

	var keys []string
	for c, err := range a.Fetch(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		keys = append(keys, c.NaturalKey)
	}
	want := []string{"line-0", "line-1", "line-2"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func rowKeyByID(row map[string]interface{}) string {
	return row["id"].(string)
}

func rowToCandidateByID(row map[string]interface{}, index int) (*feedspine.RecordCandidate, error) {
	return feedspine.NewRecordCandidate(row["id"].(string), time.Now(), row, feedspine.Metadata{Source: "diff-file"})
}

// TestDiffableFileAdapterFetchDiffOnlyScenarioF mirrors the spec's
// Scenario F: seeding a baseline, then diffing against a second version
// with 3 added, 2 removed, 1 modified, and 94 unchanged rows yields
// exactly 4 candidates (added + modified) and a matching summary.
func TestDiffableFileAdapterFetchDiffOnlyScenarioF(t *testing.T) {
	makeRows := func(n int, modifyFirst bool) []map[string]interface{} {
		rows := make([]map[string]interface{}, 0, n)
		for i := 1; i <= n; i++ {
			value := i
			if modifyFirst && i == 1 {
				value = -1
			}
			rows = append(rows, map[string]interface{}{"id": fmt.Sprintf("key-%d", i), "value": value})
		}
		return rows
	}

	var version int
	fetch := func(ctx context.Context) ([]byte, error) {
		return []byte(fmt.Sprintf("v%d", version)), nil
	}
	parse := func(content []byte) ([]map[string]interface{}, error) {
		if version == 1 {
			// v1: keys 1..97.
			return makeRows(97, false), nil
		}
		// v2: keys 1..95 (key-1 modified), keys 96-97 removed, 98-100 added.
		rows := makeRows(95, true)
		rows = append(rows,
			map[string]interface{}{"id": "key-98", "value": 98},
			map[string]interface{}{"id": "key-99", "value": 99},
			map[string]interface{}{"id": "key-100", "value": 100},
		)
		return rows, nil
	}

	a := NewDiffableFileAdapter("index-file", fetch, parse, rowToCandidateByID, rowKeyByID)

	version = 1
	if _, err := a.ComputeDiff(context.Background()); err != nil {
		t.Fatalf("seed ComputeDiff: %v", err)
	}
	a.CommitSnapshot()

	version = 2
	var count int
	var seen []string
	for c, err := range a.FetchDiffOnly(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
		seen = append(seen, c.NaturalKey)
	}
	if count != 4 {
		t.Fatalf("FetchDiffOnly yielded %d candidates, want 4 (3 added + 1 modified), got keys %v", count, seen)
	}

	// A third fetch of the same v2 content should now diff clean against
	// the committed baseline: no added/removed/modified rows remain.
	diff, err := a.ComputeDiff(context.Background())
	if err != nil {
		t.Fatalf("ComputeDiff after commit: %v", err)
	}
	summary := diff.Summary()
	want := map[string]int{"added": 0, "removed": 0, "modified": 0, "unchanged": 98}
	for k, v := range want {
		if summary[k] != v {
			t.Fatalf("summary[%q] = %d, want %d (full summary %+v)", k, summary[k], v, summary)
		}
	}
}
