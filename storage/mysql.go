package storage

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/ryansmccoy/feedspine"
)

// MySQLStore is a production feedspine.Storage backed by MySQL/MariaDB
// (§SPEC_FULL domain stack), for multi-process deployments that need
// storage to outlive any one Orchestrator process.
//
// DSN format: [username[:password]@][protocol[(address)]]/dbname[?params].
// Example: "user:pass@tcp(localhost:3306)/feedspine?parseTime=true". Like
// the teacher's MySQLStore, parseTime=true is required so time.Time
// columns scan correctly.
type MySQLStore struct {
	inner *sqlStore
}

// NewMySQLStore opens a pooled connection to dsn and ensures schema
// exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("feedspine/storage: open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("feedspine/storage: ping mysql: %w", err)
	}

	inner, err := newSQLStore(db, mysqlDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQLStore{inner: inner}, nil
}

func (s *MySQLStore) Close() error { return s.inner.Close() }

func (s *MySQLStore) Store(ctx context.Context, record *feedspine.Record) error {
	return s.inner.Store(ctx, record)
}

func (s *MySQLStore) Get(ctx context.Context, id string, layer *feedspine.Layer) (*feedspine.Record, error) {
	return s.inner.Get(ctx, id, layer)
}

func (s *MySQLStore) GetByNaturalKey(ctx context.Context, naturalKey string) (*feedspine.Record, error) {
	return s.inner.GetByNaturalKey(ctx, naturalKey)
}

func (s *MySQLStore) Exists(ctx context.Context, id string, layer *feedspine.Layer) (bool, error) {
	return s.inner.Exists(ctx, id, layer)
}

func (s *MySQLStore) ExistsByNaturalKey(ctx context.Context, naturalKey string) (bool, error) {
	return s.inner.ExistsByNaturalKey(ctx, naturalKey)
}

func (s *MySQLStore) Delete(ctx context.Context, id string, layer *feedspine.Layer) (bool, error) {
	return s.inner.Delete(ctx, id, layer)
}

func (s *MySQLStore) Query(ctx context.Context, opts feedspine.QueryOptions) iter.Seq2[*feedspine.Record, error] {
	return s.inner.Query(ctx, opts)
}

func (s *MySQLStore) Count(ctx context.Context, layer *feedspine.Layer, filters []feedspine.Filter) (int, error) {
	return s.inner.Count(ctx, layer, filters)
}

func (s *MySQLStore) RecordSighting(ctx context.Context, sighting *feedspine.Sighting) (bool, error) {
	return s.inner.RecordSighting(ctx, sighting)
}

func (s *MySQLStore) GetSightings(ctx context.Context, naturalKey string) ([]feedspine.Sighting, error) {
	return s.inner.GetSightings(ctx, naturalKey)
}

func (s *MySQLStore) StoreBatch(ctx context.Context, records []*feedspine.Record, batchSize int, onConflict feedspine.OnConflict) (int, error) {
	return s.inner.StoreBatch(ctx, records, batchSize, onConflict)
}

func (s *MySQLStore) DeleteBatch(ctx context.Context, ids []string, batchSize int) (int, error) {
	return s.inner.DeleteBatch(ctx, ids, batchSize)
}
