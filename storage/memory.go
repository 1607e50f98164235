package storage

import (
	"context"
	"encoding/json"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/ryansmccoy/feedspine"
)

// MemStore is an in-memory feedspine.Storage, useful for tests and small
// development feeds. Data does not survive process restart. MemStore is
// safe for concurrent use.
type MemStore struct {
	mu         sync.RWMutex
	records    map[string]*feedspine.Record   // id -> record
	byKey      map[string]string              // natural_key -> id
	sightings  map[string][]feedspine.Sighting // natural_key -> sightings, append-only
	insertSeq  []string                        // record ids, insertion order
}

// NewMemStore builds an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		records:   make(map[string]*feedspine.Record),
		byKey:     make(map[string]string),
		sightings: make(map[string][]feedspine.Sighting),
	}
}

func (m *MemStore) Store(_ context.Context, record *feedspine.Record) error {
	if record == nil || record.ID == "" {
		return &feedspine.ValidationError{Field: "record", Reason: "must have a non-empty ID"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, ok := m.byKey[record.NaturalKey]; ok && existingID != record.ID {
		return &feedspine.ValidationError{Field: "natural_key", Reason: "already bound to a different record id"}
	}

	if _, exists := m.records[record.ID]; !exists {
		m.insertSeq = append(m.insertSeq, record.ID)
	}
	m.records[record.ID] = record.Clone()
	m.byKey[record.NaturalKey] = record.ID
	return nil
}

func (m *MemStore) Get(_ context.Context, id string, layer *feedspine.Layer) (*feedspine.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	if layer != nil && record.Layer != *layer {
		return nil, nil
	}
	return record.Clone(), nil
}

func (m *MemStore) GetByNaturalKey(_ context.Context, naturalKey string) (*feedspine.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byKey[naturalKey]
	if !ok {
		return nil, nil
	}
	return m.records[id].Clone(), nil
}

func (m *MemStore) Exists(ctx context.Context, id string, layer *feedspine.Layer) (bool, error) {
	record, err := m.Get(ctx, id, layer)
	return record != nil, err
}

func (m *MemStore) ExistsByNaturalKey(ctx context.Context, naturalKey string) (bool, error) {
	record, err := m.GetByNaturalKey(ctx, naturalKey)
	return record != nil, err
}

func (m *MemStore) Delete(_ context.Context, id string, layer *feedspine.Layer) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return false, nil
	}
	if layer != nil && record.Layer != *layer {
		return false, nil
	}
	delete(m.records, id)
	delete(m.byKey, record.NaturalKey)
	return true, nil
}

func (m *MemStore) Query(_ context.Context, opts feedspine.QueryOptions) iter.Seq2[*feedspine.Record, error] {
	return func(yield func(*feedspine.Record, error) bool) {
		m.mu.RLock()
		ordered := make([]*feedspine.Record, 0, len(m.insertSeq))
		for _, id := range m.insertSeq {
			if record, ok := m.records[id]; ok {
				ordered = append(ordered, record.Clone())
			}
		}
		m.mu.RUnlock()

		matched := make([]*feedspine.Record, 0, len(ordered))
		for _, record := range ordered {
			if opts.Layer != nil && record.Layer != *opts.Layer {
				continue
			}
			if !matchesAllFilters(record, opts.Filters) {
				continue
			}
			matched = append(matched, record)
		}

		if opts.OrderBy != "" {
			sortRecords(matched, opts.OrderBy)
		}

		matched = paginate(matched, opts.Limit, opts.Offset)

		for _, record := range matched {
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (m *MemStore) Count(_ context.Context, layer *feedspine.Layer, filters []feedspine.Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, id := range m.insertSeq {
		record, ok := m.records[id]
		if !ok {
			continue
		}
		if layer != nil && record.Layer != *layer {
			continue
		}
		if !matchesAllFilters(record, filters) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemStore) RecordSighting(_ context.Context, sighting *feedspine.Sighting) (bool, error) {
	if sighting == nil || sighting.ID == "" {
		return false, &feedspine.ValidationError{Field: "sighting", Reason: "must have a non-empty ID"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	isNew := len(m.sightings[sighting.NaturalKey]) == 0
	m.sightings[sighting.NaturalKey] = append(m.sightings[sighting.NaturalKey], *sighting)

	if record, ok := m.records[sighting.RecordID]; ok {
		record.LastSeenAt = sighting.SeenAt
		if isNew {
			record.FirstSeenAt = sighting.SeenAt
		}
	}
	return isNew, nil
}

func (m *MemStore) GetSightings(_ context.Context, naturalKey string) ([]feedspine.Sighting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src := m.sightings[naturalKey]
	out := make([]feedspine.Sighting, len(src))
	copy(out, src)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SeenAt.Before(out[j].SeenAt) })
	return out, nil
}

func (m *MemStore) StoreBatch(ctx context.Context, records []*feedspine.Record, batchSize int, onConflict feedspine.OnConflict) (int, error) {
	if batchSize <= 0 {
		batchSize = len(records)
	}
	stored := 0
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		for _, record := range records[start:end] {
			m.mu.RLock()
			_, conflicts := m.byKey[record.NaturalKey]
			m.mu.RUnlock()

			if conflicts && onConflict == feedspine.OnConflictSkip {
				continue
			}
			if conflicts && onConflict == feedspine.OnConflictError {
				return stored, &feedspine.StorageError{Op: "StoreBatch", Cause: feedspine.ErrAlreadyRegistered}
			}
			if err := m.Store(ctx, record); err != nil {
				return stored, err
			}
			stored++
		}
	}
	return stored, nil
}

func (m *MemStore) DeleteBatch(ctx context.Context, ids []string, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(ids)
	}
	deleted := 0
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		for _, id := range ids[start:end] {
			ok, err := m.Delete(ctx, id, nil)
			if err != nil {
				return deleted, err
			}
			if ok {
				deleted++
			}
		}
	}
	return deleted, nil
}

func matchesAllFilters(record *feedspine.Record, filters []feedspine.Filter) bool {
	if len(filters) == 0 {
		return true
	}
	contentJSON := ""
	if data, err := json.Marshal(record.Content); err == nil {
		contentJSON = string(data)
	}
	for _, f := range filters {
		if !matchesFilter(record, f, contentJSON) {
			return false
		}
	}
	return true
}

func sortRecords(records []*feedspine.Record, orderBy string) {
	sort.SliceStable(records, func(i, j int) bool {
		vi, iok := fieldValue(records[i], orderBy, "")
		vj, jok := fieldValue(records[j], orderBy, "")
		if !iok || !jok {
			return false
		}
		fi, fiok := toFloat(vi)
		fj, fjok := toFloat(vj)
		if fiok && fjok {
			return fi < fj
		}
		return compareLess(vi, vj)
	})
}

func compareLess(a, b interface{}) bool {
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return as < bs
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Before(bt)
		}
	}
	return false
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
