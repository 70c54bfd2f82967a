// Package feeds holds the static feed registry and the concurrent fetcher
// that turns configured RSS/Atom endpoints into raw items.
package feeds

// Reliability tiers. The tier doubles as the diversity partition used by the
// selection policy: "diverse" sources are guaranteed a minimum number of
// slots before mainstream outlets fill the rest.
const (
	TierMainstream = "mainstream"
	TierDiverse    = "diverse"
)

// Feed is a single RSS/Atom endpoint belonging to a source.
type Feed struct {
	URL      string `yaml:"url"`
	Section  string `yaml:"section"`
	Priority int    `yaml:"priority"`
}

// Source is one outlet with one or more feeds. Immutable after load.
type Source struct {
	Name      string `yaml:"name"`
	ShortName string `yaml:"short_name"`
	Tier      string `yaml:"tier"`
	Feeds     []Feed `yaml:"feeds"`
}

// FeedRef is a flattened feed descriptor handed to the fetcher: one entry
// per endpoint, annotated with its source metadata.
type FeedRef struct {
	URL        string
	Section    string
	Priority   int
	SourceName string
	Source     string // short name
	Tier       string
}

// Registry is the immutable set of configured sources, built once at process
// start and passed explicitly to the fetcher and the selection policy.
type Registry struct {
	sources []Source
	diverse map[string]bool
}

// NewRegistry builds a registry from the given sources. Sources without a
// tier default to mainstream.
func NewRegistry(sources []Source) *Registry {
	r := &Registry{
		sources: sources,
		diverse: make(map[string]bool, len(sources)),
	}
	for i := range r.sources {
		if r.sources[i].Tier == "" {
			r.sources[i].Tier = TierMainstream
		}
		if r.sources[i].Tier == TierDiverse {
			r.diverse[r.sources[i].ShortName] = true
		}
	}
	return r
}

// Sources returns the configured sources.
func (r *Registry) Sources() []Source { return r.sources }

// FeedRefs returns one flattened descriptor per configured endpoint.
func (r *Registry) FeedRefs() []FeedRef {
	var refs []FeedRef
	for _, s := range r.sources {
		for _, f := range s.Feeds {
			refs = append(refs, FeedRef{
				URL:        f.URL,
				Section:    f.Section,
				Priority:   f.Priority,
				SourceName: s.Name,
				Source:     s.ShortName,
				Tier:       s.Tier,
			})
		}
	}
	return refs
}

// IsDiverse reports whether the source short name belongs to the diverse tier.
func (r *Registry) IsDiverse(shortName string) bool { return r.diverse[shortName] }

// DefaultSources is the built-in registry: mainstream national dailies plus
// official, judicial, and international outlets in the diverse tier.
func DefaultSources() []Source {
	return []Source{
		{
			Name: "The Hindu", ShortName: "hindu", Tier: TierMainstream,
			Feeds: []Feed{
				{URL: "https://www.thehindu.com/news/national/feeder/default.rss", Section: "national", Priority: 1},
				{URL: "https://www.thehindu.com/opinion/editorial/feeder/default.rss", Section: "editorial", Priority: 1},
			},
		},
		{
			Name: "The Indian Express", ShortName: "ie", Tier: TierMainstream,
			Feeds: []Feed{
				{URL: "https://indianexpress.com/section/india/feed/", Section: "national", Priority: 2},
				{URL: "https://indianexpress.com/section/explained/feed/", Section: "explained", Priority: 1},
			},
		},
		{
			Name: "Hindustan Times", ShortName: "ht", Tier: TierMainstream,
			Feeds: []Feed{
				{URL: "https://www.hindustantimes.com/feeds/rss/india-news/rssfeed.xml", Section: "national", Priority: 3},
			},
		},
		{
			Name: "Times of India", ShortName: "toi", Tier: TierMainstream,
			Feeds: []Feed{
				{URL: "https://timesofindia.indiatimes.com/rssfeeds/-2128936835.cms", Section: "national", Priority: 4},
			},
		},
		{
			Name: "Press Information Bureau", ShortName: "pib", Tier: TierDiverse,
			Feeds: []Feed{
				{URL: "https://pib.gov.in/RssMain.aspx?ModId=6&Lang=1&Regid=3", Section: "press-release", Priority: 1},
			},
		},
		{
			Name: "Down To Earth", ShortName: "dte", Tier: TierDiverse,
			Feeds: []Feed{
				{URL: "https://www.downtoearth.org.in/rss/environment", Section: "environment", Priority: 2},
			},
		},
		{
			Name: "LiveLaw", ShortName: "livelaw", Tier: TierDiverse,
			Feeds: []Feed{
				{URL: "https://www.livelaw.in/rss/top-stories", Section: "judgment", Priority: 2},
			},
		},
		{
			Name: "The Diplomat", ShortName: "diplomat", Tier: TierDiverse,
			Feeds: []Feed{
				{URL: "https://thediplomat.com/feed/", Section: "international", Priority: 3},
			},
		},
		{
			Name: "BBC World", ShortName: "bbc", Tier: TierDiverse,
			Feeds: []Feed{
				{URL: "https://feeds.bbci.co.uk/news/world/rss.xml", Section: "international", Priority: 4},
			},
		},
	}
}
