package emit

import (
	"context"
	"sync"
)

// BufferedEmitter stores events in memory, keyed by feed name, for tests
// and short-lived debugging sessions. Not intended for long-running
// production use: it never evicts, so memory grows with event volume.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewBufferedEmitter builds an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.FeedName] = append(b.events[event.FeedName], event)
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, event := range events {
		b.events[event.FeedName] = append(b.events[event.FeedName], event)
	}
	return nil
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// History returns every event recorded for feedName, oldest first.
func (b *BufferedEmitter) History(feedName string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.events[feedName]))
	copy(out, b.events[feedName])
	return out
}

// Clear discards buffered events for feedName, or all events when
// feedName is empty.
func (b *BufferedEmitter) Clear(feedName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if feedName == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, feedName)
}
