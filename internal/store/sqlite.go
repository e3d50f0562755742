package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/models"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	id                   TEXT PRIMARY KEY,
	payload              BLOB,
	owner                TEXT NOT NULL DEFAULT '',
	name                 TEXT NOT NULL DEFAULT '',
	amount               REAL NOT NULL DEFAULT 0,
	occurred_at          INTEGER NOT NULL,
	synced               INTEGER NOT NULL DEFAULT 0,
	sync_attempts        INTEGER NOT NULL DEFAULT 0,
	last_sync_attempt_at INTEGER NOT NULL DEFAULT 0,
	last_error           TEXT NOT NULL DEFAULT '',
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL,
	position             INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_synced ON records(synced);
`

// SQLite persists the record set in an embedded SQLite database.
// Opened with WAL mode and a single writer, via the pure-Go driver.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if necessary initializes) the database under
// dataDir.
func NewSQLite(dataDir string) (*SQLite, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "dietdaily.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(recordsSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrMigration, "failed to initialize schema", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadAll reads every record in insertion order.
func (s *SQLite) LoadAll() ([]*models.Record, error) {
	rows, err := s.db.Query(`
		SELECT id, payload, owner, name, amount, occurred_at,
		       synced, sync_attempts, last_sync_attempt_at, last_error,
		       created_at, updated_at
		FROM records ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		var rec models.Record
		var synced int
		if err := rows.Scan(&rec.ID, &rec.Payload, &rec.Owner, &rec.Name,
			&rec.Amount, &rec.OccurredAt, &synced, &rec.SyncAttempts,
			&rec.LastSyncAttemptAt, &rec.LastError,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Synced = synced != 0
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// SaveAll replaces the stored record set atomically.
func (s *SQLite) SaveAll(records []*models.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records"); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO records
			(id, payload, owner, name, amount, occurred_at,
			 synced, sync_attempts, last_sync_attempt_at, last_error,
			 created_at, updated_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range records {
		synced := 0
		if rec.Synced {
			synced = 1
		}
		if _, err := stmt.Exec(rec.ID, []byte(rec.Payload), rec.Owner, rec.Name,
			rec.Amount, rec.OccurredAt, synced, rec.SyncAttempts,
			rec.LastSyncAttemptAt, rec.LastError,
			rec.CreatedAt, rec.UpdatedAt, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}
