// Package checkpointstore provides feedspine.CheckpointStore
// implementations: in-memory, file-backed JSON, and Redis.
package checkpointstore

import (
	"context"
	"sync"

	"github.com/ryansmccoy/feedspine"
)

// MemStore is an in-memory feedspine.CheckpointStore, for tests and
// single-process runs where checkpoints need not survive a restart.
type MemStore struct {
	mu          sync.RWMutex
	checkpoints map[string]feedspine.Checkpoint
}

// NewMemStore builds an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{checkpoints: make(map[string]feedspine.Checkpoint)}
}

func (m *MemStore) Save(_ context.Context, checkpoint feedspine.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[checkpoint.CollectionID] = checkpoint
	return nil
}

func (m *MemStore) Load(_ context.Context, collectionID string) (*feedspine.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[collectionID]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (m *MemStore) Delete(_ context.Context, collectionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checkpoints[collectionID]; !ok {
		return false, nil
	}
	delete(m.checkpoints, collectionID)
	return true, nil
}

func (m *MemStore) ListIncomplete(_ context.Context, feedName string) ([]feedspine.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []feedspine.Checkpoint
	for _, cp := range m.checkpoints {
		if cp.IsComplete {
			continue
		}
		if feedName != "" && cp.FeedName != feedName {
			continue
		}
		out = append(out, cp)
	}
	return out, nil
}
