package pipeline

import (
	"sort"

	"github.com/examprep-tools/briefbot/internal/brief"
)

// Selection defaults.
const (
	DefaultTotalCap     = 25
	DefaultDiverseQuota = 5
)

// prioritySections sort ahead of every other section label. Editorials,
// explainers, official releases, and judgments carry more exam weight than
// general wire copy.
var prioritySections = map[string]bool{
	"editorial":     true,
	"explained":     true,
	"press-release": true,
	"judgment":      true,
}

// Selector orders deduplicated items and applies the source-diversity quota
// before truncating to the batch ceiling sent to enrichment.
type Selector struct {
	TotalCap     int
	DiverseQuota int
	IsDiverse    func(source string) bool
}

// NewSelector builds a selector; isDiverse classifies source short names.
func NewSelector(totalCap, diverseQuota int, isDiverse func(string) bool) *Selector {
	if totalCap <= 0 {
		totalCap = DefaultTotalCap
	}
	if diverseQuota < 0 {
		diverseQuota = DefaultDiverseQuota
	}
	if isDiverse == nil {
		isDiverse = func(string) bool { return false }
	}
	return &Selector{TotalCap: totalCap, DiverseQuota: diverseQuota, IsDiverse: isDiverse}
}

// Select ranks the items and picks at most TotalCap of them: up to
// DiverseQuota from diverse sources first, the remainder from mainstream.
// Without the quota, two or three high-volume mainstream outlets would crowd
// out thin-but-valuable official, judicial, and international feeds.
// The returned order is the ranking order; the quota governs membership only.
func (s *Selector) Select(items []brief.Item) []brief.Item {
	ranked := make([]brief.Item, len(items))
	copy(ranked, items)

	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := prioritySections[ranked[i].Section], prioritySections[ranked[j].Section]
		if pi != pj {
			return pi
		}
		return ranked[i].Priority < ranked[j].Priority
	})

	quota := s.DiverseQuota
	if quota > s.TotalCap {
		quota = s.TotalCap
	}

	take := make([]bool, len(ranked))
	taken := 0
	for i, item := range ranked {
		if taken >= quota {
			break
		}
		if s.IsDiverse(item.Source) {
			take[i] = true
			taken++
		}
	}
	for i, item := range ranked {
		if taken >= s.TotalCap {
			break
		}
		if !take[i] && !s.IsDiverse(item.Source) {
			take[i] = true
			taken++
		}
	}

	out := make([]brief.Item, 0, taken)
	for i := range ranked {
		if take[i] {
			out = append(out, ranked[i])
		}
	}
	return out
}
