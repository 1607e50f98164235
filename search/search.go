// Package search declares the narrow index/delete boundary a host can
// wire a real search backend (Elasticsearch, OpenSearch, ...) behind.
// No real backend is implemented here — that is explicitly out of
// scope (original_source's search/elasticsearch.py is not ported) —
// only the interface and an in-memory fake for tests.
package search

import (
	"context"
	"sync"
)

// Index is the boundary a Storage-adjacent search backend satisfies:
// index a record's searchable fields, and delete them again once the
// record is gone.
type Index interface {
	IndexRecord(ctx context.Context, id string, fields map[string]interface{}) error
	DeleteRecord(ctx context.Context, id string) error
}

// MemIndex is an in-memory Index, for tests exercising code that
// depends on the Index boundary without a real search backend.
type MemIndex struct {
	mu   sync.RWMutex
	docs map[string]map[string]interface{}
}

// NewMemIndex builds an empty MemIndex.
func NewMemIndex() *MemIndex {
	return &MemIndex{docs: make(map[string]map[string]interface{})}
}

func (m *MemIndex) IndexRecord(ctx context.Context, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = fields
	return nil
}

func (m *MemIndex) DeleteRecord(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// Get returns the fields indexed for id, for test assertions.
func (m *MemIndex) Get(id string) (map[string]interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.docs[id]
	return fields, ok
}

var _ Index = (*MemIndex)(nil)
