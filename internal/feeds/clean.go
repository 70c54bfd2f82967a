package feeds

import (
	"strings"

	"golang.org/x/net/html"
)

// MaxDescriptionLen bounds cleaned descriptions before they reach the
// enrichment prompt.
const MaxDescriptionLen = 560

var skipTags = map[string]bool{
	"script": true,
	"style":  true,
	"iframe": true,
}

// CleanText strips markup from a feed field: tags removed, entities decoded,
// whitespace collapsed to single spaces. Feed descriptions routinely arrive
// as HTML fragments, CDATA-wrapped markup, or double-escaped text.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.ContainsAny(s, "<>") {
		doc, err := html.Parse(strings.NewReader(s))
		if err == nil {
			var sb strings.Builder
			collectText(doc, &sb)
			s = sb.String()
		}
	}

	// A second unescape handles feeds that double-encode entities
	// (&amp;amp; and friends).
	s = html.UnescapeString(s)

	return strings.Join(strings.Fields(s), " ")
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skipTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// Truncate shortens s to at most maxLen characters, appending an ellipsis
// when anything was cut.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return strings.TrimSpace(string(runes[:maxLen-3])) + "..."
}
