// Package history records insert and query activity in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yosgi/GeoCopilot/pkg/utils"
)

// maxStoredQueryLen caps the query text kept per event so one oversized
// request cannot bloat the log.
const maxStoredQueryLen = 500

// IngestEvent is one recorded batch insert.
type IngestEvent struct {
	ID         int64     `json:"id"`
	BatchID    string    `json:"batch_id"`
	Status     string    `json:"status"`
	Source     string    `json:"source"`
	Received   int       `json:"received"`
	Inserted   int       `json:"inserted"`
	Duplicates int       `json:"duplicates"`
	TotalAfter int       `json:"total_after"`
	CreatedAt  time.Time `json:"created_at"`
}

// QueryEvent is one recorded query or summary.
type QueryEvent struct {
	ID         int64     `json:"id"`
	Mode       string    `json:"mode"`
	Query      string    `json:"query"`
	TopK       int       `json:"top_k"`
	Results    int       `json:"results"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists activity events to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the SQLite database at path and initializes the
// schema. Parent directories are created if they do not exist.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		status TEXT NOT NULL,
		source TEXT NOT NULL,
		received INTEGER NOT NULL,
		inserted INTEGER NOT NULL,
		duplicates INTEGER NOT NULL,
		total_after INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ingest_events_created_at ON ingest_events(created_at);

	CREATE TABLE IF NOT EXISTS query_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mode TEXT NOT NULL,
		query TEXT NOT NULL,
		top_k INTEGER NOT NULL,
		results INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_query_events_created_at ON query_events(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordIngest stores one batch insert outcome.
func (s *Store) RecordIngest(ctx context.Context, batchID, status, source string, received, inserted, total int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_events (batch_id, status, source, received, inserted, duplicates, total_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		batchID, status, source, received, inserted, received-inserted, total, time.Now(),
	)
	return err
}

// RecordQuery stores one query or summary outcome. The query text is
// truncated before storage.
func (s *Store) RecordQuery(ctx context.Context, mode, query string, topK, results int, elapsed time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_events (mode, query, top_k, results, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		mode, utils.Truncate(query, maxStoredQueryLen), topK, results, elapsed.Milliseconds(), time.Now(),
	)
	return err
}

// RecentIngests returns the newest ingest events, newest first.
func (s *Store) RecentIngests(ctx context.Context, limit int) ([]IngestEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, status, source, received, inserted, duplicates, total_after, created_at
		 FROM ingest_events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]IngestEvent, 0, limit)
	for rows.Next() {
		var ev IngestEvent
		if err := rows.Scan(&ev.ID, &ev.BatchID, &ev.Status, &ev.Source, &ev.Received, &ev.Inserted, &ev.Duplicates, &ev.TotalAfter, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// RecentQueries returns the newest query events, newest first.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]QueryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, query, top_k, results, duration_ms, created_at
		 FROM query_events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]QueryEvent, 0, limit)
	for rows.Next() {
		var ev QueryEvent
		if err := rows.Scan(&ev.ID, &ev.Mode, &ev.Query, &ev.TopK, &ev.Results, &ev.DurationMS, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Counts returns the total number of recorded ingest and query events.
func (s *Store) Counts(ctx context.Context) (ingests, queries int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingest_events`).Scan(&ingests); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_events`).Scan(&queries); err != nil {
		return 0, 0, err
	}
	return ingests, queries, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
