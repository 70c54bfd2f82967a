package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/examprep-tools/briefbot/internal/brief"
	"github.com/examprep-tools/briefbot/internal/feeds"
	"github.com/examprep-tools/briefbot/pkg/llm"
)

type fakeFetcher struct {
	items []brief.Item
	calls int
}

func (f *fakeFetcher) FetchAll(ctx context.Context, reg *feeds.Registry) []brief.Item {
	f.calls++
	return f.items
}

type memStore struct {
	mu    sync.Mutex
	snaps map[string]brief.Snapshot
	saves int
}

func newMemStore() *memStore {
	return &memStore{snaps: map[string]brief.Snapshot{}}
}

func (m *memStore) Save(snap brief.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.Date] = snap
	m.saves++
	return nil
}

func (m *memStore) LoadByDate(date string) (brief.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[date]
	if !ok {
		return brief.Snapshot{}, errNotFound
	}
	return snap, nil
}

var errNotFound = errors.New("not found")

func testRunner(fetcher *fakeFetcher, st *memStore, clients []llm.Client) *Runner {
	e := NewEnricher(clients, nil)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return &Runner{
		Registry: feeds.NewRegistry(feeds.DefaultSources()),
		Fetcher:  fetcher,
		Selector: NewSelector(DefaultTotalCap, DefaultDiverseQuota, nil),
		Enricher: e,
		Store:    st,
		Now:      func() time.Time { return time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC) },
	}
}

func TestRun_HappyPath(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	items := []brief.Item{
		{Title: "Cabinet clears new education policy rules", Source: "hindu", Section: "national", PublishedAt: now.Add(-2 * time.Hour)},
		{Title: "Cabinet clears NEW education policy rules!", Source: "toi", Section: "national", PublishedAt: now.Add(-3 * time.Hour)},
		{Title: "Old story from last week", Source: "hindu", Section: "national", PublishedAt: now.Add(-72 * time.Hour)},
		{Title: "SC verdict on federalism question", Source: "livelaw", Section: "judgment", PublishedAt: now.Add(-4 * time.Hour)},
	}

	results := makeResults(2)
	results[0].Importance = "high"
	client := &scriptedClient{model: "m", steps: []step{{content: batchJSON(t, results)}}}

	fetcher := &fakeFetcher{items: items}
	st := newMemStore()
	r := testRunner(fetcher, st, []llm.Client{client})

	res, err := r.Run(context.Background(), day, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Four fetched, one stale, one duplicate: two survive normalization.
	if res.TotalScraped != 2 {
		t.Errorf("totalScraped = %d, want 2", res.TotalScraped)
	}
	if res.TotalProcessed != 2 || res.Empty || res.Skipped {
		t.Errorf("result = %+v", res)
	}
	if res.ByCategory["polity"] != 2 {
		t.Errorf("byCategory = %v", res.ByCategory)
	}

	snap, err := st.LoadByDate("2026-08-27")
	if err != nil {
		t.Fatalf("LoadByDate: %v", err)
	}
	if snap.TotalScraped != 2 || len(snap.Articles) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	// The judgment-section item outranks the national item.
	if snap.Articles[0].Importance != "high" {
		t.Errorf("articles not importance-sorted: %+v", snap.Articles[0])
	}
}

func TestRun_SkipsExistingWithoutForce(t *testing.T) {
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{}
	st := newMemStore()
	st.snaps["2026-08-27"] = brief.Snapshot{Date: "2026-08-27", TotalScraped: 9, TotalProcessed: 4}

	r := testRunner(fetcher, st, nil)

	res, err := r.Run(context.Background(), day, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Skipped {
		t.Error("expected Skipped")
	}
	if res.TotalProcessed != 4 {
		t.Errorf("totalProcessed = %d, want the existing snapshot's 4", res.TotalProcessed)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times, want 0", fetcher.calls)
	}
	if st.saves != 0 {
		t.Errorf("saves = %d, want 0", st.saves)
	}
}

func TestRun_ForceOverwrites(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	st := newMemStore()
	st.snaps["2026-08-27"] = brief.Snapshot{Date: "2026-08-27", TotalProcessed: 99}

	client := &scriptedClient{model: "m", steps: []step{{content: batchJSON(t, makeResults(1))}}}
	fetcher := &fakeFetcher{items: []brief.Item{
		{Title: "Only story today", Source: "hindu", Section: "national", PublishedAt: now.Add(-time.Hour)},
	}}
	r := testRunner(fetcher, st, []llm.Client{client})

	res, err := r.Run(context.Background(), day, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped || res.TotalProcessed != 1 {
		t.Errorf("result = %+v", res)
	}
	if st.snaps["2026-08-27"].TotalProcessed != 1 {
		t.Errorf("snapshot not overwritten: %+v", st.snaps["2026-08-27"])
	}
}

func TestRun_EmptyDayIsNotAnError(t *testing.T) {
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{} // every feed failed
	st := newMemStore()
	r := testRunner(fetcher, st, nil)

	res, err := r.Run(context.Background(), day, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Empty {
		t.Error("expected Empty")
	}
	snap, err := st.LoadByDate("2026-08-27")
	if err != nil {
		t.Fatalf("empty snapshot should still be saved: %v", err)
	}
	if snap.Articles == nil || len(snap.Articles) != 0 {
		t.Errorf("snapshot articles = %v", snap.Articles)
	}
}

func TestRun_PostSaveRunsInBackground(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	client := &scriptedClient{model: "m", steps: []step{{content: batchJSON(t, makeResults(1))}}}
	fetcher := &fakeFetcher{items: []brief.Item{
		{Title: "Story", Source: "hindu", Section: "national", PublishedAt: now.Add(-time.Hour)},
	}}
	st := newMemStore()
	r := testRunner(fetcher, st, []llm.Client{client})

	var mu sync.Mutex
	var got []string
	r.Background = NewBackground(nil)
	r.PostSave = func(ctx context.Context, snap brief.Snapshot, res RunResult) {
		mu.Lock()
		got = append(got, snap.Date)
		mu.Unlock()
		panic("side task blew up") // must be contained
	}

	if _, err := r.Run(context.Background(), day, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	r.Background.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "2026-08-27" {
		t.Errorf("post-save calls = %v", got)
	}
}
