// Package pipeline implements the daily ingestion run: normalization,
// selection, LLM enrichment, assembly, and orchestration.
package pipeline

import (
	"strings"
	"time"
	"unicode"

	"github.com/examprep-tools/briefbot/internal/brief"
)

// RecencyWindow is how far back an item's publish time may lie before the
// item is dropped.
const RecencyWindow = 24 * time.Hour

// dedupKeyLen bounds the normalized-title dedup key. A 60-char prefix
// catches near-identical headlines republished across outlets without
// fuzzy matching.
const dedupKeyLen = 60

// Normalize applies the recency filter and cross-source deduplication,
// preserving input order. Items with an unparsable publish time are kept:
// absent metadata is common in the wild and must not silently erase content.
func Normalize(items []brief.Item, now time.Time) []brief.Item {
	cutoff := now.Add(-RecencyWindow)

	seen := make(map[string]bool, len(items))
	out := make([]brief.Item, 0, len(items))
	for _, item := range items {
		if !item.PublishedAt.IsZero() && item.PublishedAt.Before(cutoff) {
			continue
		}

		key := dedupKey(item.Title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// dedupKey lowercases the title, strips everything non-alphanumeric, and
// truncates to a fixed prefix.
func dedupKey(title string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	key := sb.String()
	if len(key) > dedupKeyLen {
		key = key[:dedupKeyLen]
	}
	return key
}
