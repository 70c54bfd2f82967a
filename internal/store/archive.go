package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one row of pipeline run history.
type RunRecord struct {
	Date           string         `json:"date"`
	RanAt          time.Time      `json:"ranAt"`
	TotalScraped   int            `json:"totalScraped"`
	TotalProcessed int            `json:"totalProcessed"`
	Categories     map[string]int `json:"categories"`
	DurationMs     int64          `json:"durationMs"`
}

// Archive keeps an append-only log of pipeline runs in SQLite. Unlike the
// snapshot files, re-running a date appends a new row instead of replacing
// the old one, so the history of forced re-runs is preserved.
type Archive struct {
	db *sql.DB
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	date            TEXT NOT NULL,
	ran_at          TIMESTAMP NOT NULL,
	total_scraped   INTEGER NOT NULL,
	total_processed INTEGER NOT NULL,
	categories      TEXT NOT NULL DEFAULT '{}',
	duration_ms     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(date);
`

// OpenArchive opens (creating if needed) the run archive at path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error { return a.db.Close() }

// Record appends one run to the log.
func (a *Archive) Record(ctx context.Context, rec RunRecord) error {
	cats, err := json.Marshal(rec.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO runs (date, ran_at, total_scraped, total_processed, categories, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Date, rec.RanAt, rec.TotalScraped, rec.TotalProcessed, string(cats), rec.DurationMs)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// History returns the most recent runs, newest first.
func (a *Archive) History(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT date, ran_at, total_scraped, total_processed, categories, duration_ms
		 FROM runs ORDER BY ran_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var cats string
		if err := rows.Scan(&rec.Date, &rec.RanAt, &rec.TotalScraped,
			&rec.TotalProcessed, &cats, &rec.DurationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(cats), &rec.Categories); err != nil {
			rec.Categories = map[string]int{}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
