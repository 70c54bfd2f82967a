package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/examprep-tools/briefbot/internal/brief"
)

// userAgent is browser-like because several outlets block generic bots.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher retrieves every configured feed concurrently. One failing or slow
// feed never affects its siblings: each fetch has its own timeout, and
// failures are logged and absorbed as empty results.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewFetcher creates a fetcher with the given per-feed timeout (15s when
// non-positive).
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

type fetchResult struct {
	ref   FeedRef
	items []brief.Item
	err   error
}

// FetchAll fans out over every endpoint in the registry and joins all
// results, successful or not. It never returns an error: a run with zero
// reachable feeds simply yields an empty slice.
func (f *Fetcher) FetchAll(ctx context.Context, reg *Registry) []brief.Item {
	refs := reg.FeedRefs()
	if len(refs) == 0 {
		return nil
	}

	ch := make(chan fetchResult, len(refs))
	for _, ref := range refs {
		go func(ref FeedRef) {
			items, err := f.fetchFeed(ctx, ref)
			ch <- fetchResult{ref: ref, items: items, err: err}
		}(ref)
	}

	var all []brief.Item
	failed := 0
	for range refs {
		res := <-ch
		if res.err != nil {
			failed++
			f.logger.Warn("feed fetch failed",
				"source", res.ref.Source,
				"url", res.ref.URL,
				"error", res.err,
			)
			continue
		}
		all = append(all, res.items...)
	}

	f.logger.Info("feed fetch complete",
		"feeds", len(refs),
		"failed", failed,
		"items", len(all),
	)
	return all
}

// fetchFeed retrieves and parses a single endpoint.
func (f *Fetcher) fetchFeed(ctx context.Context, ref FeedRef) ([]brief.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref.Source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, ref.Source)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", ref.Source, err)
	}

	items := make([]brief.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		title := CleanText(entry.Title)
		if title == "" {
			continue
		}

		desc := entry.Description
		if desc == "" {
			desc = entry.Content
		}
		desc = Truncate(CleanText(desc), MaxDescriptionLen)

		var published time.Time
		rawDate := entry.Published
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
			rawDate = entry.Updated
		}

		items = append(items, brief.Item{
			Title:       title,
			Description: desc,
			Link:        entry.Link,
			PublishedAt: published,
			RawDate:     rawDate,
			Source:      ref.Source,
			Section:     ref.Section,
			Priority:    ref.Priority,
		})
	}

	return items, nil
}
