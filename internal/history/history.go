// Package history provides a SQLite-backed audit trail of finished
// draw tasks. One row is appended per terminal transition; the
// dispatcher's in-memory state is never rebuilt from it.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/easel/internal/models"
	_ "modernc.org/sqlite"
)

// Store appends and queries the dispatch history database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the history database and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dispatches (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		prompt TEXT NOT NULL,
		status TEXT NOT NULL,
		urls TEXT,
		created_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_dispatches_created_at ON dispatches(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one terminal task. Implements dispatch.Recorder;
// failures are logged, never propagated, because the dispatcher must
// not stall on the audit trail.
func (s *Store) Record(task models.Task) {
	urls, err := json.Marshal(task.ResultURLs)
	if err != nil {
		log.Printf("History: encode urls for task %s: %v", task.ID, err)
		return
	}

	var finished interface{}
	if task.FinishedAt != nil {
		finished = task.FinishedAt.UTC()
	}

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO dispatches (id, client_id, prompt, status, urls, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ClientID, task.Prompt, string(task.Status), string(urls),
		task.CreatedAt.UTC(), finished,
	)
	if err != nil {
		log.Printf("History: record task %s: %v", task.ID, err)
	}
}

// Entry is one row of dispatch history.
type Entry struct {
	ID         string            `json:"id"`
	ClientID   string            `json:"client_id"`
	Prompt     string            `json:"prompt"`
	Status     models.TaskStatus `json:"status"`
	URLs       []string          `json:"urls,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, client_id, prompt, status, urls, created_at, finished_at
		 FROM dispatches ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status, urls string
		var finished sql.NullTime
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Prompt, &status, &urls, &e.CreatedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Status = models.TaskStatus(status)
		if urls != "" {
			if err := json.Unmarshal([]byte(urls), &e.URLs); err != nil {
				log.Printf("History: decode urls for %s: %v", e.ID, err)
			}
		}
		if finished.Valid {
			t := finished.Time
			e.FinishedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
