// File path: internal/ingest/clean.go
package ingest

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanText strips HTML tags, collapses whitespace and drops the null-ish
// placeholder strings exports tend to contain.
func CleanText(text string) string {
	trimmed := strings.TrimSpace(text)
	switch trimmed {
	case "", "nan", "null", "None":
		return ""
	}
	trimmed = htmlTagPattern.ReplaceAllString(trimmed, "")
	trimmed = whitespacePattern.ReplaceAllString(trimmed, " ")
	return strings.TrimSpace(trimmed)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
