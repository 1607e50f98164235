package feedspine

import (
	"context"
	"sync"
	"time"
)

// CheckpointManager owns the in-flight Checkpoint for one collection run,
// backed by a CheckpointStore for durability (§4.6). It is the only thing
// that mutates a Checkpoint's counters; the store just persists whatever
// snapshot the manager hands it.
//
// Every method except Start and Resume requires a current checkpoint;
// calling Update, Save, MaybeSave, or Complete first returns
// ErrCheckpointNotStarted.
type CheckpointManager struct {
	mu            sync.Mutex
	store         CheckpointStore
	current       *Checkpoint
	saveEvery     int
	saveInterval  time.Duration
	sinceSave     int
	lastSave      time.Time
	now           func() time.Time
}

// CheckpointManagerOption configures a CheckpointManager.
type CheckpointManagerOption func(*CheckpointManager)

// WithSaveEvery triggers MaybeSave to actually save after n Update calls
// since the last save. n <= 0 disables count-based saving.
func WithSaveEvery(n int) CheckpointManagerOption {
	return func(m *CheckpointManager) { m.saveEvery = n }
}

// WithSaveInterval triggers MaybeSave to actually save once d has elapsed
// since the last save. d <= 0 disables time-based saving.
func WithSaveInterval(d time.Duration) CheckpointManagerOption {
	return func(m *CheckpointManager) { m.saveInterval = d }
}

// WithCheckpointClock overrides time.Now, for deterministic tests.
func WithCheckpointClock(now func() time.Time) CheckpointManagerOption {
	return func(m *CheckpointManager) { m.now = now }
}

// NewCheckpointManager builds a CheckpointManager backed by store. With no
// WithSaveEvery/WithSaveInterval option, MaybeSave saves unconditionally.
func NewCheckpointManager(store CheckpointStore, opts ...CheckpointManagerOption) (*CheckpointManager, error) {
	if store == nil {
		return nil, &ValidationError{Field: "store", Reason: "must not be nil"}
	}
	m := &CheckpointManager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start begins a fresh checkpoint for (collectionID, feedName), discarding
// any prior state for that collection. Use Resume to continue an existing
// one instead.
func (m *CheckpointManager) Start(collectionID, feedName string) *Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.current = &Checkpoint{
		CollectionID: collectionID,
		FeedName:     feedName,
		Position:     map[string]any{},
		StartedAt:    now,
		UpdatedAt:    now,
	}
	m.sinceSave = 0
	m.lastSave = now
	cp := *m.current
	return &cp
}

// Resume loads collectionID from the store and adopts it as current. If
// none exists, it behaves like Start. Returns whether an existing
// checkpoint was found.
func (m *CheckpointManager) Resume(ctx context.Context, collectionID, feedName string) (*Checkpoint, bool, error) {
	existing, err := m.store.Load(ctx, collectionID)
	if err != nil {
		return nil, false, &CheckpointError{Op: "Load", Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing == nil {
		m.current = &Checkpoint{
			CollectionID: collectionID,
			FeedName:     feedName,
			Position:     map[string]any{},
			StartedAt:    now,
			UpdatedAt:    now,
		}
		m.sinceSave = 0
		m.lastSave = now
		cp := *m.current
		return &cp, false, nil
	}

	cp := *existing
	m.current = &cp
	m.sinceSave = 0
	m.lastSave = now
	out := cp
	return &out, true, nil
}

// Update mutates the current checkpoint's counters and position in
// memory; it does not by itself persist anything. Callers periodically
// call MaybeSave (or Save to force it).
func (m *CheckpointManager) Update(position map[string]any, processed, newCount, duplicate, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrCheckpointNotStarted
	}

	if position != nil {
		m.current.Position = position
	}
	m.current.Processed += processed
	m.current.New += newCount
	m.current.Duplicate += duplicate
	m.current.Failed += failed
	m.current.UpdatedAt = m.now()
	m.sinceSave++
	return nil
}

// Save persists the current checkpoint unconditionally.
func (m *CheckpointManager) Save(ctx context.Context) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrCheckpointNotStarted
	}
	cp := *m.current
	m.mu.Unlock()

	if err := m.store.Save(ctx, cp); err != nil {
		return &CheckpointError{Op: "Save", Cause: err}
	}

	m.mu.Lock()
	m.sinceSave = 0
	m.lastSave = m.now()
	m.mu.Unlock()
	return nil
}

// MaybeSave saves only if a configured WithSaveEvery count or
// WithSaveInterval duration has elapsed since the last save. With neither
// configured, it always saves. Returns whether a save actually occurred.
//
// Per §7, a CheckpointError here does not end the run: the caller should
// log/emit it and keep going in memory, retrying on the next MaybeSave.
func (m *CheckpointManager) MaybeSave(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return false, ErrCheckpointNotStarted
	}

	due := m.saveEvery <= 0 && m.saveInterval <= 0
	if m.saveEvery > 0 && m.sinceSave >= m.saveEvery {
		due = true
	}
	if m.saveInterval > 0 && m.now().Sub(m.lastSave) >= m.saveInterval {
		due = true
	}
	m.mu.Unlock()

	if !due {
		return false, nil
	}
	if err := m.Save(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Complete marks the current checkpoint IsComplete and force-saves it.
func (m *CheckpointManager) Complete(ctx context.Context) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrCheckpointNotStarted
	}
	m.current.IsComplete = true
	m.current.UpdatedAt = m.now()
	m.mu.Unlock()

	return m.Save(ctx)
}

// Current returns a copy of the in-memory checkpoint, or nil if none is
// active.
func (m *CheckpointManager) Current() *Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}
