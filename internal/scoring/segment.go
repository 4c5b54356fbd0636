// Package scoring implements the analysis collaborator locally: paragraph and
// section segmentation, uniformity statistics, anchor detection and lexicons.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// maxHeadingWords bounds numbered headings so numbered list items are not mistaken for them.
const maxHeadingWords = 10

var (
	blankLines      = regexp.MustCompile(`\n\s*\n`)
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+\S`)
	numberedHeading = regexp.MustCompile(`^(\d{1,2}(\.\d{1,2})*\.?|[IVX]+\.)\s+\S.{0,80}$`)
	chineseHeading  = regexp.MustCompile(`^第[一二三四五六七八九十百\d]+[章节部分]`)
)

// SplitParagraphs splits text on blank lines and drops empty paragraphs.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLines.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsHeading reports whether a paragraph is a section heading.
func IsHeading(p string) bool {
	p = strings.TrimSpace(p)
	if strings.Contains(p, "\n") {
		return false
	}
	if markdownHeading.MatchString(p) || chineseHeading.MatchString(p) {
		return true
	}
	return numberedHeading.MatchString(p) && !strings.HasSuffix(p, ".") && CountWords(p) <= maxHeadingWords
}

// HeadingTitle strips heading markers.
func HeadingTitle(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimLeft(p, "# ")
	if loc := numberedHeading.FindStringSubmatchIndex(p); loc != nil && loc[2] == 0 {
		p = strings.TrimSpace(p[loc[3]:])
	}
	return p
}

// SplitSentences splits a paragraph into sentences on terminal punctuation.
// CJK terminators end a sentence immediately; Latin ones only before a space.
func SplitSentences(p string) []string {
	runes := []rune(strings.Join(strings.Fields(p), " "))
	var out []string
	var cur []rune
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			out = append(out, s)
		}
		cur = cur[:0]
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		cur = append(cur, r)
		switch {
		case strings.ContainsRune("。！？", r):
			for i+1 < len(runes) && strings.ContainsRune("”’」）", runes[i+1]) {
				i++
				cur = append(cur, runes[i])
			}
			flush()
		case strings.ContainsRune(".!?", r):
			j := i + 1
			for j < len(runes) && strings.ContainsRune(".!?\"'”’)", runes[j]) {
				j++
			}
			if j == len(runes) || runes[j] == ' ' {
				cur = append(cur, runes[i+1:j]...)
				i = j - 1
				flush()
			}
		}
	}
	flush()
	return out
}

// CountWords counts whitespace-separated words; each Han character counts as one word.
func CountWords(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			count++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				count++
				inWord = true
			}
		case r == '\'' || r == '-':
			// part of the current word
		default:
			inWord = false
		}
	}
	return count
}

// CV returns the coefficient of variation of values, or nil when it is undefined.
func CV(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return nil
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	cv := math.Sqrt(sq/float64(len(values))) / mean
	cv = math.Round(cv*1000) / 1000
	return &cv
}
