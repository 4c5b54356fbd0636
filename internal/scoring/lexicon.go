package scoring

import (
	"regexp"
	"sort"
	"strings"

	"github.com/textaudit/layered-audit/internal/types"
)

// genericPhrases are stock phrases that carry no specific content.
var genericPhrases = []string{
	"in today's world",
	"in recent years",
	"plays an important role",
	"plays a crucial role",
	"it is worth noting",
	"it is important to note",
	"has attracted widespread attention",
	"a wide range of",
	"in the field of",
	"with the development of",
	"more and more",
	"to some extent",
	"随着社会的发展",
	"近年来",
	"具有重要意义",
	"发挥着重要作用",
	"越来越多",
	"在一定程度上",
	"引起了广泛关注",
}

// fingerprintTiers maps overused machine-text words to a tier.
var fingerprintTiers = map[string]types.Level{
	"delve":        types.LevelHigh,
	"tapestry":     types.LevelHigh,
	"testament":    types.LevelHigh,
	"multifaceted": types.LevelHigh,
	"intricate":    types.LevelHigh,
	"meticulous":   types.LevelHigh,
	"pivotal":      types.LevelMedium,
	"crucial":      types.LevelMedium,
	"seamless":     types.LevelMedium,
	"leverage":     types.LevelMedium,
	"underscore":   types.LevelMedium,
	"realm":        types.LevelMedium,
	"landscape":    types.LevelMedium,
	"foster":       types.LevelMedium,
	"moreover":     types.LevelLow,
	"furthermore":  types.LevelLow,
	"notably":      types.LevelLow,
	"additionally": types.LevelLow,

	"赋能":   types.LevelHigh,
	"至关重要": types.LevelMedium,
	"不可或缺": types.LevelMedium,
	"综上所述": types.LevelLow,
}

// tierWeight scores fingerprint hits.
var tierWeight = map[types.Level]float64{
	types.LevelHigh:   3,
	types.LevelMedium: 2,
	types.LevelLow:    1,
}

var latinWord = regexp.MustCompile(`[A-Za-z]+`)

// CountGenericPhrases counts stock phrase occurrences in s.
func CountGenericPhrases(s string) int {
	lower := strings.ToLower(s)
	count := 0
	for _, phrase := range genericPhrases {
		count += strings.Count(lower, phrase)
	}
	return count
}

// FindFingerprints returns fingerprint hits ordered by tier, then word.
// Latin words match on word stems ("delves", "delving"); CJK terms by substring.
func FindFingerprints(s string) []types.FingerprintHit {
	counts := make(map[string]int)
	for _, w := range latinWord.FindAllString(strings.ToLower(s), -1) {
		for term := range fingerprintTiers {
			if isLatin(term) && strings.HasPrefix(w, stem(term)) && len(w) <= len(term)+3 {
				counts[term]++
			}
		}
	}
	for term := range fingerprintTiers {
		if !isLatin(term) {
			if n := strings.Count(s, term); n > 0 {
				counts[term] = n
			}
		}
	}

	hits := make([]types.FingerprintHit, 0, len(counts))
	for term, n := range counts {
		hits = append(hits, types.FingerprintHit{Word: term, Count: n, Tier: fingerprintTiers[term]})
	}
	sort.Slice(hits, func(i, j int) bool {
		if tierWeight[hits[i].Tier] != tierWeight[hits[j].Tier] {
			return tierWeight[hits[i].Tier] > tierWeight[hits[j].Tier]
		}
		return hits[i].Word < hits[j].Word
	})
	return hits
}

func isLatin(s string) bool {
	return latinWord.MatchString(s)
}

// stem drops a trailing "e" so that inflected forms match.
func stem(term string) string {
	return strings.TrimSuffix(term, "e")
}

// canonicalSections is the template order of an academic paper, with the
// keywords that identify each section.
var canonicalSections = []struct {
	Role     string
	Keywords []string
}{
	{"introduction", []string{"introduction", "background", "引言", "绪论", "背景"}},
	{"related_work", []string{"related work", "literature review", "文献综述", "相关工作"}},
	{"method", []string{"method", "methodology", "approach", "研究方法", "方法"}},
	{"results", []string{"results", "findings", "experiment", "结果", "实验"}},
	{"discussion", []string{"discussion", "讨论", "分析"}},
	{"conclusion", []string{"conclusion", "summary", "结论", "总结"}},
}

// SectionRole classifies a heading title, returning "" when it matches no canonical section.
func SectionRole(title string) (role string, order int) {
	lower := strings.ToLower(title)
	for i, section := range canonicalSections {
		for _, kw := range section.Keywords {
			if strings.Contains(lower, kw) {
				return section.Role, i
			}
		}
	}
	return "", -1
}
