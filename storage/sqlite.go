package storage

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	_ "modernc.org/sqlite"

	"github.com/ryansmccoy/feedspine"
)

// SQLiteStore is a single-file feedspine.Storage backed by
// modernc.org/sqlite, for development and single-process deployments
// (§SPEC_FULL domain stack). WAL mode is enabled for concurrent readers;
// SQLite itself still serializes writers, matched here by sqlStore's
// internal mutex.
type SQLiteStore struct {
	inner *sqlStore
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path.
// Pass ":memory:" for an ephemeral in-process database, used by tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("feedspine/storage: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("feedspine/storage: %s: %w", pragma, err)
		}
	}

	inner, err := newSQLStore(db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{inner: inner}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.inner.Close() }

func (s *SQLiteStore) Store(ctx context.Context, record *feedspine.Record) error {
	return s.inner.Store(ctx, record)
}

func (s *SQLiteStore) Get(ctx context.Context, id string, layer *feedspine.Layer) (*feedspine.Record, error) {
	return s.inner.Get(ctx, id, layer)
}

func (s *SQLiteStore) GetByNaturalKey(ctx context.Context, naturalKey string) (*feedspine.Record, error) {
	return s.inner.GetByNaturalKey(ctx, naturalKey)
}

func (s *SQLiteStore) Exists(ctx context.Context, id string, layer *feedspine.Layer) (bool, error) {
	return s.inner.Exists(ctx, id, layer)
}

func (s *SQLiteStore) ExistsByNaturalKey(ctx context.Context, naturalKey string) (bool, error) {
	return s.inner.ExistsByNaturalKey(ctx, naturalKey)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string, layer *feedspine.Layer) (bool, error) {
	return s.inner.Delete(ctx, id, layer)
}

func (s *SQLiteStore) Query(ctx context.Context, opts feedspine.QueryOptions) iter.Seq2[*feedspine.Record, error] {
	return s.inner.Query(ctx, opts)
}

func (s *SQLiteStore) Count(ctx context.Context, layer *feedspine.Layer, filters []feedspine.Filter) (int, error) {
	return s.inner.Count(ctx, layer, filters)
}

func (s *SQLiteStore) RecordSighting(ctx context.Context, sighting *feedspine.Sighting) (bool, error) {
	return s.inner.RecordSighting(ctx, sighting)
}

func (s *SQLiteStore) GetSightings(ctx context.Context, naturalKey string) ([]feedspine.Sighting, error) {
	return s.inner.GetSightings(ctx, naturalKey)
}

func (s *SQLiteStore) StoreBatch(ctx context.Context, records []*feedspine.Record, batchSize int, onConflict feedspine.OnConflict) (int, error) {
	return s.inner.StoreBatch(ctx, records, batchSize, onConflict)
}

func (s *SQLiteStore) DeleteBatch(ctx context.Context, ids []string, batchSize int) (int, error) {
	return s.inner.DeleteBatch(ctx, ids, batchSize)
}
