package orchestrator

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/ryansmccoy/feedspine"
	"github.com/ryansmccoy/feedspine/adapter"
	"github.com/ryansmccoy/feedspine/storage"
)

func mustCandidate(t *testing.T, naturalKey string) *feedspine.RecordCandidate {
	t.Helper()
	c, err := feedspine.NewRecordCandidate(naturalKey, time.Now(), map[string]interface{}{"title": naturalKey}, feedspine.Metadata{Source: "test"})
	if err != nil {
		t.Fatalf("NewRecordCandidate: %v", err)
	}
	return c
}

func TestCollectFirstSeenDeduplication(t *testing.T) {
	registry := adapter.NewRegistry()
	candidates := []*feedspine.RecordCandidate{
		mustCandidate(t, "item-1"),
		mustCandidate(t, "item-1"), // duplicate within the same fetch
		mustCandidate(t, "item-2"),
	}
	if err := registry.Register(adapter.NewListAdapter("feed-a", candidates)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	store := storage.NewMemStore()
	orch, err := New(registry, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := orch.Collect(context.Background(), "feed-a")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected successful collection, got errors: %+v", result.Errors)
	}
	if got := result.TotalNew(); got != 2 {
		t.Fatalf("TotalNew() = %d, want 2", got)
	}
	if got := result.TotalDuplicates(); got != 1 {
		t.Fatalf("TotalDuplicates() = %d, want 1", got)
	}
}

func TestCollectUnknownFeedReturnsError(t *testing.T) {
	registry := adapter.NewRegistry()
	store := storage.NewMemStore()
	orch, err := New(registry, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := orch.Collect(context.Background(), "missing"); err == nil {
		t.Fatal("expected error collecting unregistered feed")
	}
}

func TestRunAllIsolatesPerFeedFailures(t *testing.T) {
	registry := adapter.NewRegistry()
	if err := registry.Register(adapter.NewListAdapter("feed-good", []*feedspine.RecordCandidate{mustCandidate(t, "a")})); err != nil {
		t.Fatalf("Register feed-good: %v", err)
	}

	failing := &adapter.Func{
		FeedName: "feed-bad",
		FetchFunc: func(ctx context.Context) iter.Seq2[*feedspine.RecordCandidate, error] {
			return func(yield func(*feedspine.RecordCandidate, error) bool) {
				yield(nil, &feedspine.FeedError{Adapter: "feed-bad", Cause: context.DeadlineExceeded})
			}
		},
	}
	if err := registry.Register(failing); err != nil {
		t.Fatalf("Register feed-bad: %v", err)
	}

	store := storage.NewMemStore()
	orch, err := New(registry, store, []Option{WithConcurrency(2)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := orch.RunAll(context.Background())
	if result.Success() {
		t.Fatal("expected RunAll result to report feed-bad's failure")
	}
	if got := result.Stats["feed-good"].New; got != 1 {
		t.Fatalf("feed-good New = %d, want 1 (failure in feed-bad must not block it)", got)
	}
}

func TestRunAllRespectsConcurrencyOne(t *testing.T) {
	registry := adapter.NewRegistry()
	for _, name := range []string{"feed-a", "feed-b", "feed-c"} {
		if err := registry.Register(adapter.NewListAdapter(name, []*feedspine.RecordCandidate{mustCandidate(t, name)})); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	store := storage.NewMemStore()
	orch, err := New(registry, store, nil) // default concurrency 1
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := orch.RunAll(context.Background())
	if !result.Success() {
		t.Fatalf("expected success, got errors: %+v", result.Errors)
	}
	if len(result.Stats) != 3 {
		t.Fatalf("expected stats for 3 feeds, got %d", len(result.Stats))
	}
}
