// Package store implements durable client-side storage for the set of
// still-active sync jobs, used to resume tracking after a restart.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// activeJobsKey is the single kv entry holding the active set. The value is a
// full-replace snapshot, so last-write-wins is sufficient for concurrent writers.
const activeJobsKey = "active_sync_jobs"

// ActiveJob is the minimal metadata persisted per non-terminal job
type ActiveJob struct {
	JobID     string    `json:"job_id"`
	JobKind   string    `json:"job_kind"`
	StartedAt time.Time `json:"started_at"`
}

// SQLite implements the active-set storage on a local sqlite file
type SQLite struct {
	db *sqlx.DB
}

// NewSQLite opens (creating if needed) the storage file and schema
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS kv (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER
	)`
	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to create schema: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// SaveActive replaces the stored active set. An empty set deletes the entry
// entirely so an absent key always means "no active jobs".
func (s *SQLite) SaveActive(jobs []ActiveJob) error {
	if len(jobs) == 0 {
		if _, err := s.db.Exec("DELETE FROM kv WHERE name = ?", activeJobsKey); err != nil {
			return fmt.Errorf("failed to delete active set: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("failed to marshal active set: %w", err)
	}

	query := `INSERT INTO kv (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.Exec(query, activeJobsKey, string(data), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save active set: %w", err)
	}
	return nil
}

// LoadActive returns the stored active set, empty if the entry is absent
func (s *SQLite) LoadActive() ([]ActiveJob, error) {
	var value string
	err := s.db.Get(&value, "SELECT value FROM kv WHERE name = ?", activeJobsKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active set: %w", err)
	}

	var jobs []ActiveJob
	if err := json.Unmarshal([]byte(value), &jobs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active set: %w", err)
	}
	return jobs, nil
}

// Close closes the underlying database
func (s *SQLite) Close() error { return s.db.Close() }
