package adapter

import (
	"context"
	"iter"
	"sync"

	"github.com/ryansmccoy/feedspine"
)

// ListAdapter serves a fixed, in-memory slice of candidates, the
// simplest FeedAdapter mode (§3.1 "list" feeds: a finite batch fetched
// once per run, no pagination, no streaming).
type ListAdapter struct {
	FeedName   string
	Candidates []*feedspine.RecordCandidate

	mu   sync.Mutex
	info feedspine.AdapterInfo
}

var _ feedspine.FeedAdapter = (*ListAdapter)(nil)

// NewListAdapter builds a ListAdapter serving candidates verbatim.
func NewListAdapter(feedName string, candidates []*feedspine.RecordCandidate) *ListAdapter {
	return &ListAdapter{FeedName: feedName, Candidates: candidates}
}

func (l *ListAdapter) Name() string { return l.FeedName }

func (l *ListAdapter) Initialize(ctx context.Context) error { return nil }

func (l *ListAdapter) Close(ctx context.Context) error { return nil }

func (l *ListAdapter) Fetch(ctx context.Context) iter.Seq2[*feedspine.RecordCandidate, error] {
	return func(yield func(*feedspine.RecordCandidate, error) bool) {
		for _, c := range l.Candidates {
			select {
			case <-ctx.Done():
				return
			default:
			}

			l.mu.Lock()
			l.info.ItemCount++
			l.mu.Unlock()

			if !yield(c, nil) {
				return
			}
		}
	}
}

func (l *ListAdapter) Info() feedspine.AdapterInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info
}
