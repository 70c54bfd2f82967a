// Package brief defines the data model shared across the ingestion pipeline:
// raw feed items on the way in, enriched articles and daily snapshots on the
// way out.
package brief

import "time"

// Item is a single story pulled from a feed. It lives only for the duration
// of one pipeline run and is never persisted.
type Item struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"published_at"` // zero when the feed date was unparsable
	RawDate     string    `json:"raw_date,omitempty"`
	Source      string    `json:"source"`  // source short name
	Section     string    `json:"section"` // feed section label
	Priority    int       `json:"priority"`
}

// Importance levels, in final sort order.
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
	ImportanceLow    = "low"
)

// Categories is the closed set of topical domains an article can carry.
var Categories = []string{
	"polity",
	"economy",
	"international",
	"environment",
	"science-tech",
	"society",
	"security",
	"history-culture",
	"geography",
	"miscellaneous",
}

// DefaultCategory is assigned when enrichment returns no usable category.
const DefaultCategory = "miscellaneous"

// Papers is the closed set of top-level syllabus groupings.
var Papers = []string{"gs1", "gs2", "gs3", "gs4"}

// DefaultPaper is assigned when enrichment returns no usable paper mapping.
const DefaultPaper = "gs2"

// Article is the persisted unit: one enriched story in a day's snapshot.
// List fields are always non-nil and booleans always explicit, so consumers
// never see null.
type Article struct {
	ID               string    `json:"id"`
	Headline         string    `json:"headline"`
	Summary          string    `json:"summary"`
	Category         string    `json:"category"`
	Paper            string    `json:"paper"`
	SubTopics        []string  `json:"subTopics"`
	Date             string    `json:"date"` // YYYY-MM-DD
	Source           string    `json:"source"`
	SourceURL        string    `json:"sourceUrl"`
	Importance       string    `json:"importance"`
	Tags             []string  `json:"tags"`
	KeyTerms         []string  `json:"keyTerms"`
	Prelims          bool      `json:"prelimsRelevant"`
	PrelimsPoints    []string  `json:"prelimsPoints"`
	Mains            bool      `json:"mainsRelevant"`
	MainsPoints      []string  `json:"mainsPoints"`
	ImageDescription string    `json:"imageDescription"`
	Section          string    `json:"section"`
	ProcessedAt      time.Time `json:"processedAt"`
}

// Snapshot holds one calendar day of enriched articles plus run metadata.
type Snapshot struct {
	Date           string               `json:"date"` // YYYY-MM-DD
	DisplayDate    string               `json:"displayDate"`
	LastUpdated    time.Time            `json:"lastUpdated"`
	Articles       []Article            `json:"articles"`
	Sources        []string             `json:"sources"`
	TotalScraped   int                  `json:"totalScraped"`
	TotalProcessed int                  `json:"totalProcessed"`
	Highlights     []string             `json:"highlights"`
	ByPaper        map[string][]Article `json:"byPaper"`
}

// Index is the derived catalog of available snapshots. It is a cache: the
// store can always rebuild it by rescanning snapshot files.
type Index struct {
	LastUpdated   time.Time `json:"lastUpdated"`
	Dates         []string  `json:"dates"` // descending
	TotalArticles int       `json:"totalArticles"`
	LatestDate    string    `json:"latestDate"`
}

// ValidCategory reports whether c is in the closed category set.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidPaper reports whether p is in the closed paper set.
func ValidPaper(p string) bool {
	for _, v := range Papers {
		if v == p {
			return true
		}
	}
	return false
}

// ValidImportance reports whether level is high, medium, or low.
func ValidImportance(level string) bool {
	return level == ImportanceHigh || level == ImportanceMedium || level == ImportanceLow
}

// DateFormat is the canonical snapshot date layout. Zero-padded ISO days
// keep lexicographic order equal to chronological order.
const DateFormat = "2006-01-02"

// DisplayFormat is the human-readable date shown in snapshot headers.
const DisplayFormat = "2 January 2006"
