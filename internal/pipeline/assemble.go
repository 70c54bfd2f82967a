package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/examprep-tools/briefbot/internal/brief"
)

const (
	maxIDLen      = 80
	maxHighlights = 5
)

var importanceRank = map[string]int{
	brief.ImportanceHigh:   0,
	brief.ImportanceMedium: 1,
	brief.ImportanceLow:    2,
}

// Assemble merges enrichment results with their source items, fills
// defaults, guarantees per-day ID uniqueness, and sorts by importance
// (high first; ties keep batch order, stable).
func Assemble(enriched []Enriched, day time.Time, now time.Time) []brief.Article {
	date := day.Format(brief.DateFormat)

	articles := make([]brief.Article, 0, len(enriched))
	usedIDs := make(map[string]int, len(enriched))
	for _, e := range enriched {
		a := assembleOne(e, date, now)
		if n := usedIDs[a.ID]; n > 0 {
			a.ID = fmt.Sprintf("%s-%d", a.ID, n+1)
		}
		usedIDs[a.ID]++
		articles = append(articles, a)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		return importanceRank[articles[i].Importance] < importanceRank[articles[j].Importance]
	})
	return articles
}

// assembleOne builds a single article, defaulting every optional field the
// model omitted: empty slices stay [], booleans false, importance medium.
func assembleOne(e Enriched, date string, now time.Time) brief.Article {
	res := e.Result

	headline := strings.TrimSpace(res.Headline)
	if headline == "" {
		headline = e.Item.Title
	}

	summary := strings.TrimSpace(res.Summary)
	if summary == "" {
		summary = e.Item.Description
	}

	category := res.Category
	if !brief.ValidCategory(category) {
		category = brief.DefaultCategory
	}

	paper := res.Paper
	if !brief.ValidPaper(paper) {
		paper = brief.DefaultPaper
	}

	importance := res.Importance
	if !brief.ValidImportance(importance) {
		importance = brief.ImportanceMedium
	}

	return brief.Article{
		ID:               articleID(headline, date),
		Headline:         headline,
		Summary:          summary,
		Category:         category,
		Paper:            paper,
		SubTopics:        orEmpty(res.SubTopics),
		Date:             date,
		Source:           e.Item.Source,
		SourceURL:        e.Item.Link,
		Importance:       importance,
		Tags:             orEmpty(res.Tags),
		KeyTerms:         orEmpty(res.KeyTerms),
		Prelims:          res.Prelims,
		PrelimsPoints:    orEmpty(res.PrelimsPoints),
		Mains:            res.Mains,
		MainsPoints:      orEmpty(res.MainsPoints),
		ImageDescription: strings.TrimSpace(res.ImageDescription),
		Section:          e.Item.Section,
		ProcessedAt:      now,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// articleID derives a deterministic URL-safe identifier from the headline
// and the snapshot date.
func articleID(headline, date string) string {
	slug := slugify(headline)
	if max := maxIDLen - len(date) - 1; len(slug) > max {
		slug = strings.Trim(slug[:max], "-")
	}
	if slug == "" {
		slug = "article"
	}
	return slug + "-" + date
}

// slugify lowercases and collapses every non-alphanumeric run to a single
// hyphen.
func slugify(s string) string {
	var sb strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			sb.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.Trim(sb.String(), "-")
}

// BuildSnapshot wraps assembled articles into the persisted daily document:
// distinct sources, highlights, and the by-paper grouping with every paper
// key present even when empty.
func BuildSnapshot(articles []brief.Article, day time.Time, totalScraped int, now time.Time) brief.Snapshot {
	sources := make([]string, 0, 8)
	seen := map[string]bool{}
	for _, a := range articles {
		if !seen[a.Source] {
			seen[a.Source] = true
			sources = append(sources, a.Source)
		}
	}

	highlights := make([]string, 0, maxHighlights)
	for _, a := range articles {
		if a.Importance != brief.ImportanceHigh {
			continue
		}
		highlights = append(highlights, a.Headline)
		if len(highlights) == maxHighlights {
			break
		}
	}

	byPaper := make(map[string][]brief.Article, len(brief.Papers))
	for _, p := range brief.Papers {
		byPaper[p] = []brief.Article{}
	}
	for _, a := range articles {
		byPaper[a.Paper] = append(byPaper[a.Paper], a)
	}

	if articles == nil {
		articles = []brief.Article{}
	}

	return brief.Snapshot{
		Date:           day.Format(brief.DateFormat),
		DisplayDate:    day.Format(brief.DisplayFormat),
		LastUpdated:    now,
		Articles:       articles,
		Sources:        sources,
		TotalScraped:   totalScraped,
		TotalProcessed: len(articles),
		Highlights:     highlights,
		ByPaper:        byPaper,
	}
}
