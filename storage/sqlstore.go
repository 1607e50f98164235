package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"iter"
	"sync"

	"github.com/ryansmccoy/feedspine"
)

// dialect captures the handful of places SQLite and MySQL syntax diverge
// for the schema and upsert statements below. Both drivers accept "?"
// placeholders, so query text is otherwise shared between them.
type dialect struct {
	name           string // "sqlite" or "mysql"
	idColumnType   string
	timestampType  string
	textType       string
	upsertRecord   string // full INSERT ... ON CONFLICT/DUPLICATE KEY statement, %s verb for table name
}

var sqliteDialect = dialect{
	name:          "sqlite",
	idColumnType:  "TEXT",
	timestampType: "TIMESTAMP",
	textType:      "TEXT",
	upsertRecord: `
		INSERT INTO records (
			id, natural_key, layer, content, metadata, published_at, captured_at,
			updated_at, version, first_seen_at, last_seen_at, seen_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			natural_key = excluded.natural_key,
			layer = excluded.layer,
			content = excluded.content,
			metadata = excluded.metadata,
			published_at = excluded.published_at,
			captured_at = excluded.captured_at,
			updated_at = excluded.updated_at,
			version = excluded.version,
			first_seen_at = excluded.first_seen_at,
			last_seen_at = excluded.last_seen_at,
			seen_count = excluded.seen_count
	`,
}

var mysqlDialect = dialect{
	name:          "mysql",
	idColumnType:  "VARCHAR(255)",
	timestampType: "DATETIME(6)",
	textType:      "LONGTEXT",
	upsertRecord: `
		INSERT INTO records (
			id, natural_key, layer, content, metadata, published_at, captured_at,
			updated_at, version, first_seen_at, last_seen_at, seen_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			natural_key = VALUES(natural_key),
			layer = VALUES(layer),
			content = VALUES(content),
			metadata = VALUES(metadata),
			published_at = VALUES(published_at),
			captured_at = VALUES(captured_at),
			updated_at = VALUES(updated_at),
			version = VALUES(version),
			first_seen_at = VALUES(first_seen_at),
			last_seen_at = VALUES(last_seen_at),
			seen_count = VALUES(seen_count)
	`,
}

// sqlStore is the shared SQL-backed feedspine.Storage core for SQLite and
// MySQL. Record-level filtering on "content.*" paths happens in Go via
// gjson after a SQL fetch restricted to the Layer filter, because SQLite
// and MySQL expose incompatible native JSON path functions; pushing only
// the layer predicate down keeps the cross-dialect surface small. The
// layer column has no index, so the database still scans the records
// table to apply it.
type sqlStore struct {
	db *sql.DB
	d  dialect
	mu sync.Mutex // serializes writers; SQLite in particular allows one at a time
}

func newSQLStore(db *sql.DB, d dialect) (*sqlStore, error) {
	s := &sqlStore{db: db, d: d}
	if err := s.createTables(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) createTables(ctx context.Context) error {
	recordsTable := `
		CREATE TABLE IF NOT EXISTS records (
			id ` + s.d.idColumnType + ` PRIMARY KEY,
			natural_key ` + s.d.idColumnType + ` NOT NULL UNIQUE,
			layer INTEGER NOT NULL,
			content ` + s.d.textType + ` NOT NULL,
			metadata ` + s.d.textType + ` NOT NULL,
			published_at ` + s.d.timestampType + `,
			captured_at ` + s.d.timestampType + `,
			updated_at ` + s.d.timestampType + `,
			version INTEGER NOT NULL,
			first_seen_at ` + s.d.timestampType + `,
			last_seen_at ` + s.d.timestampType + `,
			seen_count INTEGER NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, recordsTable); err != nil {
		return &feedspine.StorageError{Op: "createTables(records)", Cause: err}
	}

	sightingsTable := `
		CREATE TABLE IF NOT EXISTS sightings (
			id ` + s.d.idColumnType + ` PRIMARY KEY,
			natural_key ` + s.d.idColumnType + ` NOT NULL,
			record_id ` + s.d.idColumnType + `,
			source ` + s.d.idColumnType + ` NOT NULL,
			seen_at ` + s.d.timestampType + ` NOT NULL,
			is_new INTEGER NOT NULL,
			raw_data_hash ` + s.d.idColumnType + `,
			metadata ` + s.d.textType + `
		)
	`
	if _, err := s.db.ExecContext(ctx, sightingsTable); err != nil {
		return &feedspine.StorageError{Op: "createTables(sightings)", Cause: err}
	}

	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_sightings_natural_key ON sightings(natural_key)"); err != nil {
		return &feedspine.StorageError{Op: "createTables(idx_sightings_natural_key)", Cause: err}
	}
	return nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) Store(ctx context.Context, record *feedspine.Record) error {
	content, err := json.Marshal(record.Content)
	if err != nil {
		return &feedspine.StorageError{Op: "Store", Cause: err}
	}
	meta, err := json.Marshal(record.Metadata)
	if err != nil {
		return &feedspine.StorageError{Op: "Store", Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, s.d.upsertRecord,
		record.ID, record.NaturalKey, int(record.Layer), string(content), string(meta),
		record.PublishedAt, record.CapturedAt, record.UpdatedAt, record.Version,
		record.FirstSeenAt, record.LastSeenAt, record.SeenCount,
	)
	if err != nil {
		return &feedspine.StorageError{Op: "Store", Cause: err}
	}
	return nil
}

const selectRecordColumns = `
	id, natural_key, layer, content, metadata, published_at, captured_at,
	updated_at, version, first_seen_at, last_seen_at, seen_count
`

func scanRecord(row interface {
	Scan(dest ...any) error
}) (*feedspine.Record, error) {
	var (
		r             feedspine.Record
		layer         int
		contentJSON   string
		metadataJSON  string
	)
	if err := row.Scan(
		&r.ID, &r.NaturalKey, &layer, &contentJSON, &metadataJSON,
		&r.PublishedAt, &r.CapturedAt, &r.UpdatedAt, &r.Version,
		&r.FirstSeenAt, &r.LastSeenAt, &r.SeenCount,
	); err != nil {
		return nil, err
	}
	r.Layer = feedspine.Layer(layer)
	if err := json.Unmarshal([]byte(contentJSON), &r.Content); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadataJSON), &r.Metadata); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *sqlStore) Get(ctx context.Context, id string, layer *feedspine.Layer) (*feedspine.Record, error) {
	query := "SELECT " + selectRecordColumns + " FROM records WHERE id = ?"
	args := []any{id}
	if layer != nil {
		query += " AND layer = ?"
		args = append(args, int(*layer))
	}
	row := s.db.QueryRowContext(ctx, query, args...)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &feedspine.StorageError{Op: "Get", Cause: err}
	}
	return record, nil
}

func (s *sqlStore) GetByNaturalKey(ctx context.Context, naturalKey string) (*feedspine.Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectRecordColumns+" FROM records WHERE natural_key = ?", naturalKey)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &feedspine.StorageError{Op: "GetByNaturalKey", Cause: err}
	}
	return record, nil
}

func (s *sqlStore) Exists(ctx context.Context, id string, layer *feedspine.Layer) (bool, error) {
	record, err := s.Get(ctx, id, layer)
	return record != nil, err
}

func (s *sqlStore) ExistsByNaturalKey(ctx context.Context, naturalKey string) (bool, error) {
	record, err := s.GetByNaturalKey(ctx, naturalKey)
	return record != nil, err
}

func (s *sqlStore) Delete(ctx context.Context, id string, layer *feedspine.Layer) (bool, error) {
	query := "DELETE FROM records WHERE id = ?"
	args := []any{id}
	if layer != nil {
		query += " AND layer = ?"
		args = append(args, int(*layer))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, &feedspine.StorageError{Op: "Delete", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &feedspine.StorageError{Op: "Delete", Cause: err}
	}
	return n > 0, nil
}

func (s *sqlStore) Query(ctx context.Context, opts feedspine.QueryOptions) iter.Seq2[*feedspine.Record, error] {
	return func(yield func(*feedspine.Record, error) bool) {
		query := "SELECT " + selectRecordColumns + " FROM records"
		var args []any
		if opts.Layer != nil {
			query += " WHERE layer = ?"
			args = append(args, int(*opts.Layer))
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, &feedspine.StorageError{Op: "Query", Cause: err})
			return
		}
		defer rows.Close()

		var matched []*feedspine.Record
		for rows.Next() {
			record, err := scanRecord(rows)
			if err != nil {
				yield(nil, &feedspine.StorageError{Op: "Query", Cause: err})
				return
			}
			if matchesAllFilters(record, opts.Filters) {
				matched = append(matched, record)
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, &feedspine.StorageError{Op: "Query", Cause: err})
			return
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

func (s *sqlStore) Count(ctx context.Context, layer *feedspine.Layer, filters []feedspine.Filter) (int, error) {
	count := 0
	for record, err := range s.Query(ctx, feedspine.QueryOptions{Layer: layer, Filters: filters}) {
		if err != nil {
			return 0, err
		}
		_ = record
		count++
	}
	return count, nil
}

func (s *sqlStore) RecordSighting(ctx context.Context, sighting *feedspine.Sighting) (bool, error) {
	meta, err := json.Marshal(sighting.Metadata)
	if err != nil {
		return false, &feedspine.StorageError{Op: "RecordSighting", Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var priorCount int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sightings WHERE natural_key = ?", sighting.NaturalKey)
	if err := row.Scan(&priorCount); err != nil {
		return false, &feedspine.StorageError{Op: "RecordSighting", Cause: err}
	}
	isNew := priorCount == 0

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sightings (id, natural_key, record_id, source, seen_at, is_new, raw_data_hash, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sighting.ID, sighting.NaturalKey, sighting.RecordID, sighting.Source,
		sighting.SeenAt, boolToInt(sighting.IsNew), sighting.RawDataHash, string(meta),
	)
	if err != nil {
		return false, &feedspine.StorageError{Op: "RecordSighting", Cause: err}
	}

	_, err = s.db.ExecContext(ctx, "UPDATE records SET last_seen_at = ? WHERE id = ?", sighting.SeenAt, sighting.RecordID)
	if err != nil {
		return isNew, &feedspine.StorageError{Op: "RecordSighting", Cause: err}
	}
	return isNew, nil
}

func (s *sqlStore) GetSightings(ctx context.Context, naturalKey string) ([]feedspine.Sighting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, natural_key, record_id, source, seen_at, is_new, raw_data_hash, metadata
		 FROM sightings WHERE natural_key = ? ORDER BY seen_at ASC`, naturalKey)
	if err != nil {
		return nil, &feedspine.StorageError{Op: "GetSightings", Cause: err}
	}
	defer rows.Close()

	var out []feedspine.Sighting
	for rows.Next() {
		var (
			sgt        feedspine.Sighting
			recordID   sql.NullString
			isNew      int
			rawHash    sql.NullString
			metaJSON   string
		)
		if err := rows.Scan(&sgt.ID, &sgt.NaturalKey, &recordID, &sgt.Source, &sgt.SeenAt, &isNew, &rawHash, &metaJSON); err != nil {
			return nil, &feedspine.StorageError{Op: "GetSightings", Cause: err}
		}
		sgt.RecordID = recordID.String
		sgt.IsNew = isNew != 0
		sgt.RawDataHash = rawHash.String
		_ = json.Unmarshal([]byte(metaJSON), &sgt.Metadata)
		out = append(out, sgt)
	}
	return out, rows.Err()
}

func (s *sqlStore) StoreBatch(ctx context.Context, records []*feedspine.Record, batchSize int, onConflict feedspine.OnConflict) (int, error) {
	if batchSize <= 0 {
		batchSize = len(records)
	}
	stored := 0
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return stored, &feedspine.StorageError{Op: "StoreBatch", Cause: err}
		}

		for _, record := range records[start:end] {
			if onConflict != feedspine.OnConflictUpdate {
				existing, err := s.ExistsByNaturalKey(ctx, record.NaturalKey)
				if err != nil {
					_ = tx.Rollback()
					return stored, err
				}
				if existing {
					if onConflict == feedspine.OnConflictSkip {
						continue
					}
					_ = tx.Rollback()
					return stored, &feedspine.StorageError{Op: "StoreBatch", Cause: feedspine.ErrAlreadyRegistered}
				}
			}
			if err := s.storeTx(ctx, tx, record); err != nil {
				_ = tx.Rollback()
				return stored, err
			}
			stored++
		}

		if err := tx.Commit(); err != nil {
			return stored, &feedspine.StorageError{Op: "StoreBatch", Cause: err}
		}
	}
	return stored, nil
}

func (s *sqlStore) storeTx(ctx context.Context, tx *sql.Tx, record *feedspine.Record) error {
	content, err := json.Marshal(record.Content)
	if err != nil {
		return &feedspine.StorageError{Op: "StoreBatch", Cause: err}
	}
	meta, err := json.Marshal(record.Metadata)
	if err != nil {
		return &feedspine.StorageError{Op: "StoreBatch", Cause: err}
	}
	_, err = tx.ExecContext(ctx, s.d.upsertRecord,
		record.ID, record.NaturalKey, int(record.Layer), string(content), string(meta),
		record.PublishedAt, record.CapturedAt, record.UpdatedAt, record.Version,
		record.FirstSeenAt, record.LastSeenAt, record.SeenCount,
	)
	if err != nil {
		return &feedspine.StorageError{Op: "StoreBatch", Cause: err}
	}
	return nil
}

func (s *sqlStore) DeleteBatch(ctx context.Context, ids []string, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(ids)
	}
	deleted := 0
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return deleted, &feedspine.StorageError{Op: "DeleteBatch", Cause: err}
		}
		for _, id := range ids[start:end] {
			res, err := tx.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id)
			if err != nil {
				_ = tx.Rollback()
				return deleted, &feedspine.StorageError{Op: "DeleteBatch", Cause: err}
			}
			if n, _ := res.RowsAffected(); n > 0 {
				deleted++
			}
		}
		if err := tx.Commit(); err != nil {
			return deleted, &feedspine.StorageError{Op: "DeleteBatch", Cause: err}
		}
	}
	return deleted, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
