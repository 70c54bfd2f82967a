package images

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/examprep-tools/briefbot/internal/brief"
)

func TestRenderDaily(t *testing.T) {
	dir := t.TempDir()
	r := NewCardRenderer(filepath.Join(dir, "cards"))

	snap := brief.Snapshot{
		Date:           "2026-08-27",
		DisplayDate:    "27 August 2026",
		TotalProcessed: 2,
		Sources:        []string{"The Hindu", "PIB"},
		Articles: []brief.Article{
			{Headline: "Parliament passes data protection amendment", Importance: "high"},
			{Headline: "RBI releases financial stability report", Importance: "medium"},
		},
		LastUpdated: time.Now(),
	}

	path, err := r.RenderDaily(snap)
	if err != nil {
		t.Fatalf("RenderDaily: %v", err)
	}
	if filepath.Base(path) != "card-2026-08-27.png" {
		t.Errorf("path = %q", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat card: %v", err)
	}
	if info.Size() == 0 {
		t.Error("card file is empty")
	}
}

func TestRenderDaily_EmptySnapshot(t *testing.T) {
	r := NewCardRenderer(t.TempDir())
	snap := brief.Snapshot{Date: "2026-08-27", DisplayDate: "27 August 2026"}

	if _, err := r.RenderDaily(snap); err != nil {
		t.Fatalf("RenderDaily on empty snapshot: %v", err)
	}
}

func TestTruncateHeadline(t *testing.T) {
	short := "short headline"
	if got := truncateHeadline(short); got != short {
		t.Errorf("got %q", got)
	}

	long := make([]rune, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, 'x')
	}
	got := truncateHeadline(string(long))
	if len([]rune(got)) != 110 {
		t.Errorf("truncated length = %d, want 110", len([]rune(got)))
	}
}
