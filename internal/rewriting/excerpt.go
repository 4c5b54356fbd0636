package rewriting

import (
	"strings"

	"github.com/textaudit/layered-audit/internal/scoring"
	"github.com/textaudit/layered-audit/internal/types"
)

// Excerpt limits in runes.
const (
	excerptLimit      = 2000
	quickExcerptLimit = 600
)

// excerpt returns the passage an issue refers to: its paragraph when located,
// otherwise the start of the document.
func excerpt(text string, issue types.Issue, limit int) string {
	if issue.Location != nil && issue.Location.Paragraph != nil {
		paragraphs := scoring.SplitParagraphs(text)
		if idx := *issue.Location.Paragraph; idx >= 0 && idx < len(paragraphs) {
			return truncate(paragraphs[idx], limit)
		}
	}
	return truncate(strings.TrimSpace(text), limit)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// introducedFingerprints lists fingerprint words the revision uses more often than the original.
func introducedFingerprints(original, revised string) []string {
	before := make(map[string]int)
	for _, hit := range scoring.FindFingerprints(original) {
		before[hit.Word] = hit.Count
	}
	var out []string
	for _, hit := range scoring.FindFingerprints(revised) {
		if hit.Count > before[hit.Word] {
			out = append(out, hit.Word)
		}
	}
	return out
}
