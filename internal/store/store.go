// Package store owns the on-disk artifacts: one immutable JSON snapshot per
// calendar day, a derived index document, and a SQLite archive of pipeline
// runs.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/examprep-tools/briefbot/internal/brief"
)

// ErrNotFound is returned by read accessors when a snapshot is absent or
// unparsable. Corrupt files are treated the same as missing ones so readers
// never crash on a bad artifact.
var ErrNotFound = errors.New("snapshot not found")

var snapshotFileRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.json$`)

// Store reads and writes daily snapshots under <dir>/briefs. It is the sole
// owner of the on-disk representation; everything else holds snapshots in
// memory only.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates the snapshot directory if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{dir: dir, logger: logger}
	if err := os.MkdirAll(s.briefsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return s, nil
}

func (s *Store) briefsDir() string { return filepath.Join(s.dir, "briefs") }

func (s *Store) snapshotPath(date string) string {
	return filepath.Join(s.briefsDir(), date+".json")
}

func (s *Store) indexPath() string {
	return filepath.Join(s.briefsDir(), "index.json")
}

// Save writes the snapshot for its date, unconditionally overwriting any
// existing file — forced re-runs are full overwrites, never merges — and
// then recomputes the index. The snapshot directory is a single-writer
// resource: concurrent saves for the same date race last-writer-wins.
func (s *Store) Save(snap brief.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(s.snapshotPath(snap.Date), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", snap.Date, err)
	}

	idx, err := s.RebuildIndex()
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	if err := s.writeIndex(idx); err != nil {
		return err
	}

	s.logger.Info("snapshot saved", "date", snap.Date, "articles", len(snap.Articles))
	return nil
}

// LoadByDate reads one day's snapshot. Absent or corrupt files yield
// ErrNotFound.
func (s *Store) LoadByDate(date string) (brief.Snapshot, error) {
	return s.readSnapshot(s.snapshotPath(date))
}

// LoadLatest returns the snapshot for the greatest available date. Dates
// are zero-padded ISO, so lexicographic order is chronological.
func (s *Store) LoadLatest() (brief.Snapshot, error) {
	for _, date := range s.scanDates() {
		snap, err := s.readSnapshot(s.snapshotPath(date))
		if err == nil {
			return snap, nil
		}
	}
	return brief.Snapshot{}, ErrNotFound
}

// LoadRecent concatenates the article lists of the newest nDays snapshots,
// newest first. Unparsable files are skipped.
func (s *Store) LoadRecent(nDays int) ([]brief.Article, error) {
	dates := s.scanDates()
	if nDays < len(dates) {
		dates = dates[:nDays]
	}

	var articles []brief.Article
	for _, date := range dates {
		snap, err := s.readSnapshot(s.snapshotPath(date))
		if err != nil {
			continue
		}
		articles = append(articles, snap.Articles...)
	}
	return articles, nil
}

// ListDates returns up to limit available dates, descending.
func (s *Store) ListDates(limit int) []string {
	dates := s.scanDates()
	if limit > 0 && limit < len(dates) {
		dates = dates[:limit]
	}
	return dates
}

// LoadIndex reads the cached index document, falling back to a full rescan
// when the cache is missing or stale-unreadable. The index is never a
// source of truth.
func (s *Store) LoadIndex() (brief.Index, error) {
	data, err := os.ReadFile(s.indexPath())
	if err == nil {
		var idx brief.Index
		if jsonErr := json.Unmarshal(data, &idx); jsonErr == nil {
			return idx, nil
		}
	}
	return s.RebuildIndex()
}

// RebuildIndex derives the index purely by rescanning snapshot files.
func (s *Store) RebuildIndex() (brief.Index, error) {
	idx := brief.Index{
		LastUpdated: time.Now(),
		Dates:       []string{},
	}

	for _, date := range s.scanDates() {
		snap, err := s.readSnapshot(s.snapshotPath(date))
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", "date", date)
			continue
		}
		idx.Dates = append(idx.Dates, date)
		idx.TotalArticles += len(snap.Articles)
	}

	if len(idx.Dates) > 0 {
		idx.LatestDate = idx.Dates[0]
	}
	return idx, nil
}

func (s *Store) writeIndex(idx brief.Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := os.WriteFile(s.indexPath(), data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// scanDates lists snapshot dates on disk, descending.
func (s *Store) scanDates() []string {
	entries, err := os.ReadDir(s.briefsDir())
	if err != nil {
		return nil
	}

	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if m := snapshotFileRe.FindStringSubmatch(e.Name()); m != nil {
			dates = append(dates, m[1])
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

func (s *Store) readSnapshot(path string) (brief.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return brief.Snapshot{}, ErrNotFound
	}
	var snap brief.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return brief.Snapshot{}, ErrNotFound
	}
	return snap, nil
}
