package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/examprep-tools/briefbot/internal/brief"
	"github.com/examprep-tools/briefbot/internal/feeds"
)

// ItemFetcher pulls raw items from every configured feed.
type ItemFetcher interface {
	FetchAll(ctx context.Context, reg *feeds.Registry) []brief.Item
}

// BatchEnricher turns selected items into enrichment results.
type BatchEnricher interface {
	EnrichAll(ctx context.Context, items []brief.Item) ([]Enriched, int)
}

// SnapshotStore is the persistence surface the runner needs.
type SnapshotStore interface {
	Save(snap brief.Snapshot) error
	LoadByDate(date string) (brief.Snapshot, error)
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	Date           string         `json:"date"`
	TotalScraped   int            `json:"totalScraped"`
	TotalProcessed int            `json:"totalProcessed"`
	ByCategory     map[string]int `json:"byCategory"`
	SkippedBatches int            `json:"skippedBatches"`
	// Skipped means a snapshot for the date already existed and force was
	// not set; nothing was fetched.
	Skipped bool `json:"skipped"`
	// Empty means the run completed but produced zero articles. That is a
	// valid outcome (a quiet day, or every feed down), not an error.
	Empty    bool          `json:"empty"`
	Duration time.Duration `json:"-"`
}

// Runner wires the pipeline stages together for a single day's run.
type Runner struct {
	Registry *feeds.Registry
	Fetcher  ItemFetcher
	Selector *Selector
	Enricher BatchEnricher
	Store    SnapshotStore
	Logger   *slog.Logger

	// Now is swappable for tests; nil means time.Now.
	Now func() time.Time

	// PostSave, when set, runs in the background after a successful save.
	// Failures there never affect the run outcome.
	PostSave   func(ctx context.Context, snap brief.Snapshot, res RunResult)
	Background *Background
}

// Run executes the full pipeline for the given day. Without force, an
// existing snapshot for the date short-circuits the run untouched.
func (r *Runner) Run(ctx context.Context, day time.Time, force bool) (RunResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	date := day.Format(brief.DateFormat)
	start := now()

	if !force {
		if existing, err := r.Store.LoadByDate(date); err == nil {
			logger.Info("snapshot exists, skipping run", "date", date, "articles", len(existing.Articles))
			return RunResult{
				Date:           date,
				TotalScraped:   existing.TotalScraped,
				TotalProcessed: existing.TotalProcessed,
				ByCategory:     countCategories(existing.Articles),
				Skipped:        true,
			}, nil
		}
	}

	logger.Info("pipeline run starting", "date", date, "force", force)

	raw := r.Fetcher.FetchAll(ctx, r.Registry)
	if err := ctx.Err(); err != nil {
		return RunResult{Date: date}, fmt.Errorf("run canceled: %w", err)
	}

	normalized := Normalize(raw, now())
	totalScraped := len(normalized)
	selected := r.Selector.Select(normalized)
	logger.Info("items selected",
		"fetched", len(raw), "after_dedup", totalScraped, "selected", len(selected))

	enriched, skippedBatches := r.Enricher.EnrichAll(ctx, selected)
	if err := ctx.Err(); err != nil {
		return RunResult{Date: date}, fmt.Errorf("run canceled: %w", err)
	}

	articles := Assemble(enriched, day, now())
	snap := BuildSnapshot(articles, day, totalScraped, now())
	if err := r.Store.Save(snap); err != nil {
		return RunResult{Date: date}, fmt.Errorf("save snapshot: %w", err)
	}

	res := RunResult{
		Date:           date,
		TotalScraped:   totalScraped,
		TotalProcessed: len(articles),
		ByCategory:     countCategories(articles),
		SkippedBatches: skippedBatches,
		Empty:          len(articles) == 0,
		Duration:       now().Sub(start),
	}

	logger.Info("pipeline run complete",
		"date", date,
		"scraped", res.TotalScraped,
		"processed", res.TotalProcessed,
		"skipped_batches", res.SkippedBatches,
		"duration", res.Duration,
	)

	if r.PostSave != nil && r.Background != nil {
		snapCopy := snap
		resCopy := res
		r.Background.Go("post-save", func() {
			r.PostSave(context.WithoutCancel(ctx), snapCopy, resCopy)
		})
	}
	return res, nil
}

func countCategories(articles []brief.Article) map[string]int {
	counts := make(map[string]int)
	for _, a := range articles {
		counts[a.Category]++
	}
	return counts
}
