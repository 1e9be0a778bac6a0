//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"gepnas/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

// DefaultStoreKind is the backend used when none is configured.
func DefaultStoreKind() string { return "sqlite" }

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			started_at = excluded.started_at,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.StartedAt.UnixNano(), run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, payload FROM runs ORDER BY started_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) SavePopulation(ctx context.Context, snapshot model.PopulationSnapshot) error {
	payload, err := EncodePopulation(snapshot)
	if err != nil {
		return err
	}
	return s.putPayload(ctx, "populations", snapshot.RunID, payload)
}

func (s *SQLiteStore) GetPopulation(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	payload, ok, err := s.getPayload(ctx, "populations", runID)
	if err != nil || !ok {
		return model.PopulationSnapshot{}, false, err
	}
	snapshot, err := DecodePopulation(payload)
	if err != nil {
		return model.PopulationSnapshot{}, false, fmt.Errorf("decode population %s: %w", runID, err)
	}
	return snapshot, true, nil
}

func (s *SQLiteStore) SaveLogbook(ctx context.Context, runID string, entries []model.LogbookEntry) error {
	payload, err := EncodeLogbook(entries)
	if err != nil {
		return err
	}
	return s.putPayload(ctx, "logbooks", runID, payload)
}

func (s *SQLiteStore) GetLogbook(ctx context.Context, runID string) ([]model.LogbookEntry, bool, error) {
	payload, ok, err := s.getPayload(ctx, "logbooks", runID)
	if err != nil || !ok {
		return nil, false, err
	}
	entries, err := DecodeLogbook(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode logbook %s: %w", runID, err)
	}
	return entries, true, nil
}

func (s *SQLiteStore) SaveHallOfFame(ctx context.Context, record model.HallOfFameRecord) error {
	payload, err := EncodeHallOfFame(record)
	if err != nil {
		return err
	}
	return s.putPayload(ctx, "hall_of_fame", record.RunID, payload)
}

func (s *SQLiteStore) GetHallOfFame(ctx context.Context, runID string) (model.HallOfFameRecord, bool, error) {
	payload, ok, err := s.getPayload(ctx, "hall_of_fame", runID)
	if err != nil || !ok {
		return model.HallOfFameRecord{}, false, err
	}
	record, err := DecodeHallOfFame(payload)
	if err != nil {
		return model.HallOfFameRecord{}, false, fmt.Errorf("decode hall of fame %s: %w", runID, err)
	}
	return record, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// putPayload upserts into one of the run-keyed tables. table is always a
// constant from this file.
func (s *SQLiteStore) putPayload(ctx context.Context, table, runID string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+table+` (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, runID, payload)
	return err
}

func (s *SQLiteStore) getPayload(ctx context.Context, table, runID string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM `+table+` WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS populations (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS logbooks (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS hall_of_fame (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
