package scoring

import (
	"regexp"
	"strings"
	"unicode"
)

// anchorPatterns match concrete, verifiable elements of a text. Earlier
// patterns win where matches overlap.
var anchorPatterns = []*regexp.Regexp{
	// [3], [1, 4], [2-5]
	regexp.MustCompile(`\[\d+(?:[,\-–]\s*\d+)*\]`),
	// (Smith, 2020), (Lee et al., 2019), (Chen and Wang, 2021)
	regexp.MustCompile(`\([A-Z][A-Za-z\-]+(?: et al\.)?(?: and [A-Z][A-Za-z\-]+)?,? \d{4}[a-z]?\)`),
	regexp.MustCompile(`\b(?:1[5-9]|20)\d{2}\b`),
	regexp.MustCompile(`\d+(?:\.\d+)?\s?(?:%|％|percent\b)`),
	regexp.MustCompile(`\d+(?:\.\d+)?\s?(?:年|月|日|个|项|人|次|倍|万|亿)`),
	regexp.MustCompile(`\b\d+(?:[.,]\d+)*\b`),
}

// CountAnchors counts the anchors in s. Overlapping matches of different
// patterns are counted once.
func CountAnchors(s string) int {
	covered := make([]bool, len(s))
	count := 0
	for _, re := range anchorPatterns {
		for _, loc := range re.FindAllStringIndex(s, -1) {
			if overlaps(covered, loc[0], loc[1]) {
				continue
			}
			for i := loc[0]; i < loc[1]; i++ {
				covered[i] = true
			}
			count++
		}
	}
	masked := []byte(s)
	for i, c := range covered {
		if c {
			masked[i] = ' '
		}
	}
	return count + countNames(string(masked))
}

func overlaps(covered []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if covered[i] {
			return true
		}
	}
	return false
}

// countNames counts capitalised words that do not start a sentence, a proxy
// for proper names. Runs of capitalised words count once.
func countNames(s string) int {
	count := 0
	for _, sentence := range SplitSentences(s) {
		words := strings.Fields(sentence)
		inName := false
		for i, w := range words {
			w = strings.Trim(w, `"'“”‘’(),;:.!?`)
			if i == 0 || w == "" {
				inName = false
				continue
			}
			first := []rune(w)[0]
			if unicode.IsUpper(first) && !stopCapitalised[w] {
				if !inName {
					count++
				}
				inName = true
				continue
			}
			inName = false
		}
	}
	return count
}

// stopCapitalised are capitalised words that are not names.
var stopCapitalised = map[string]bool{
	"I": true, "The": true, "This": true, "These": true, "However": true, "In": true,
	"A": true, "An": true, "It": true, "We": true, "Our": true,
}
