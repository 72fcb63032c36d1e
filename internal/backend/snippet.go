// Package backend holds helpers shared by the search backend implementations.
package backend

import (
	"strings"
	"unicode/utf8"
)

// DefaultSnippetMaxChars bounds the text stored alongside indexed documents.
const DefaultSnippetMaxChars = 600

// Snippet collapses whitespace and truncates content to maxChars characters.
func Snippet(content string, maxChars int) string {
	if content == "" {
		return ""
	}
	clean := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(clean) <= maxChars {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:maxChars-3]) + "..."
}

// NormaliseScore maps score into [0,1] relative to top.
func NormaliseScore(score, top float64) float64 {
	if top <= 0 || score <= 0 {
		return 0
	}
	if score >= top {
		return 1
	}
	return score / top
}
