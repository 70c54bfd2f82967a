// Package images renders a shareable PNG card summarizing a day's brief.
// Rendering runs as a background task after the snapshot is saved; a
// failure here never affects the pipeline.
package images

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"github.com/examprep-tools/briefbot/internal/brief"
)

const (
	cardWidth    = 1080
	cardHeight   = 1350
	marginX      = 72.0
	maxHeadlines = 6
	lineGap      = 96.0
)

// importanceColors maps importance levels to the dot color next to each
// headline.
var importanceColors = map[string][3]float64{
	brief.ImportanceHigh:   {0.91, 0.30, 0.24},
	brief.ImportanceMedium: {0.95, 0.61, 0.07},
	brief.ImportanceLow:    {0.58, 0.65, 0.65},
}

// CardRenderer draws daily summary cards into a fixed output directory.
type CardRenderer struct {
	dir string
}

func NewCardRenderer(dir string) *CardRenderer {
	return &CardRenderer{dir: dir}
}

// RenderDaily writes <dir>/card-<date>.png for the snapshot and returns the
// file path.
func (r *CardRenderer) RenderDaily(snap brief.Snapshot) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create card dir: %w", err)
	}

	dc := gg.NewContext(cardWidth, cardHeight)

	// Dark slate background with a thin accent bar on top.
	dc.SetRGB(0.09, 0.11, 0.14)
	dc.Clear()
	dc.SetRGB(0.91, 0.30, 0.24)
	dc.DrawRectangle(0, 0, cardWidth, 14)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored("Daily Current Affairs", marginX, 120, 0, 0.5)
	dc.SetRGB(0.62, 0.68, 0.74)
	dc.DrawStringAnchored(snap.DisplayDate, marginX, 170, 0, 0.5)

	y := 280.0
	count := 0
	for _, a := range snap.Articles {
		if count == maxHeadlines {
			break
		}
		c := importanceColors[a.Importance]
		dc.SetRGB(c[0], c[1], c[2])
		dc.DrawCircle(marginX+8, y-6, 8)
		dc.Fill()

		dc.SetRGB(0.92, 0.94, 0.96)
		dc.DrawStringWrapped(truncateHeadline(a.Headline), marginX+32, y, 0, 0.5,
			cardWidth-2*marginX-32, 1.4, gg.AlignLeft)

		y += lineGap
		count++
	}

	if count == 0 {
		dc.SetRGB(0.62, 0.68, 0.74)
		dc.DrawStringAnchored("No articles today.", marginX, y, 0, 0.5)
	}

	dc.SetRGB(0.45, 0.50, 0.55)
	dc.DrawStringAnchored(
		fmt.Sprintf("%d articles · %d sources", snap.TotalProcessed, len(snap.Sources)),
		marginX, cardHeight-80, 0, 0.5)

	path := filepath.Join(r.dir, "card-"+snap.Date+".png")
	if err := dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("save card: %w", err)
	}
	return path, nil
}

func truncateHeadline(s string) string {
	const max = 110
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
