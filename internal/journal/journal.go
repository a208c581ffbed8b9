// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal records the history of crawl runs in SQLite: one row per
// run and one row per paper page outcome. The ledger remains the record of
// which papers exist; the journal answers what happened and when.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Status is the outcome of processing one paper page.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusNoAsset    Status = "no_asset"
	StatusFailed     Status = "failed"
)

// Outcome is the journal entry for one paper page.
type Outcome struct {
	URL      string
	Title    string
	Status   Status
	Attempts int
	Err      string
	At       time.Time
}

// Run summarizes one crawl run.
type Run struct {
	ID         string
	RootURL    string
	Started    time.Time
	Finished   time.Time
	Downloaded int
	NoAsset    int
	Failed     int
}

// Journal is a handle on the crawl journal database. It is safe for
// concurrent use; writes are serialized on a single connection.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return j, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			root_url TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			url TEXT NOT NULL,
			title TEXT,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			error TEXT,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_run_id ON pages(run_id)`,
	}
	for _, stmt := range statements {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// StartRun inserts a new run and returns its ID.
func (j *Journal) StartRun(ctx context.Context, rootURL string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, root_url, started_at) VALUES (?, ?, ?)`,
		id, rootURL, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}
	return id, nil
}

// Record stores the outcome of one paper page for run.
func (j *Journal) Record(ctx context.Context, runID string, o Outcome) error {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO pages (run_id, url, title, status, attempts, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, o.URL, o.Title, string(o.Status), o.Attempts, o.Err, formatTime(at))
	if err != nil {
		return fmt.Errorf("recording %s: %w", o.URL, err)
	}
	return nil
}

// FinishRun stamps the run's finish time.
func (j *Journal) FinishRun(ctx context.Context, runID string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ? WHERE id = ?`, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, most recent first, with outcome counts.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.root_url, r.started_at, COALESCE(r.finished_at, ''),
			COALESCE(SUM(p.status = 'downloaded'), 0),
			COALESCE(SUM(p.status = 'no_asset'), 0),
			COALESCE(SUM(p.status = 'failed'), 0)
		FROM runs r LEFT JOIN pages p ON p.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.RootURL, &started, &finished, &r.Downloaded, &r.NoAsset, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Started = parseTime(started)
		r.Finished = parseTime(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Failures returns the failed pages of run in the order they were recorded.
func (j *Journal) Failures(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT url, COALESCE(title, ''), status, attempts, COALESCE(error, ''), recorded_at
		FROM pages WHERE run_id = ? AND status = 'failed'
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		var status, at string
		if err := rows.Scan(&o.URL, &o.Title, &status, &o.Attempts, &o.Err, &at); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		o.Status = Status(status)
		o.At = parseTime(at)
		out = append(out, o)
	}
	return out, rows.Err()
}

// timeLayout has fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
