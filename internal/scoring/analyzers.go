package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/textaudit/layered-audit/internal/issues"
	"github.com/textaudit/layered-audit/internal/types"
)

const (
	// paragraphWorkers bounds the per-paragraph fan-out.
	paragraphWorkers = 8

	// minSentencesForCV is the sentence count below which a paragraph's sentence CV is not computed.
	minSentencesForCV = 3

	// shortParagraphWords marks a paragraph too short to carry substance.
	shortParagraphWords = 20
	// lowSpecificity is the anchors-per-100-words value below which a paragraph counts as unspecific.
	lowSpecificity = 2.0
	// substantialityLowFraction and substantialityMediumFraction bound the share of weak paragraphs.
	substantialityLowFraction    = 0.3
	substantialityMediumFraction = 0.1

	// openerRepeatMin is the number of sentences in a paragraph sharing a first word that counts as a pattern.
	openerRepeatMin = 3
	emDash          = "\u2014"
)

func clampScore(v float64) float64 {
	return math.Round(math.Max(0, math.Min(100, v))*10) / 10
}

func paragraphLength(o outline) *types.AnalysisResult {
	body := o.body()
	counts := make([]float64, len(body))
	for i, b := range body {
		counts[i] = float64(CountWords(b.Text))
	}

	result := &types.AnalysisResult{
		RiskLevel: types.RiskLow,
		Metrics:   []types.Metric{{Name: "paragraph_count", Value: float64(len(body))}},
	}
	cv := CV(counts)
	if cv == nil {
		return result
	}
	result.Measurements.ParagraphLengthCV = cv
	result.Metrics = append(result.Metrics, types.Metric{Name: "paragraph_length_cv", Value: *cv})
	result.RiskScore = clampScore((0.5 - *cv) / 0.5 * 100)
	switch {
	case *cv < issues.ParagraphVeryUniformCV:
		result.RiskLevel = types.RiskHigh
	case *cv < issues.ParagraphUniformCV:
		result.RiskLevel = types.RiskMedium
	}
	return result
}

// substantiality flags paragraphs that are short, or unspecific while leaning on stock phrases.
func substantiality(o outline) *types.AnalysisResult {
	body := o.body()
	m := types.Measurements{}
	for _, b := range body {
		words := CountWords(b.Text)
		generic := CountGenericPhrases(b.Text)
		m.GenericPhraseCount += generic

		specificity := 0.0
		if words > 0 {
			specificity = float64(CountAnchors(b.Text)) / float64(words) * 100
		}
		if words < shortParagraphWords || (specificity < lowSpecificity && generic > 0) {
			m.LowSubstantialityParagraphs = append(m.LowSubstantialityParagraphs, b.Index)
		}
	}

	fraction := 0.0
	if len(body) > 0 {
		fraction = float64(len(m.LowSubstantialityParagraphs)) / float64(len(body))
	}
	result := &types.AnalysisResult{RiskScore: clampScore(fraction * 100)}
	switch {
	case fraction > substantialityLowFraction:
		m.Substantiality, result.RiskLevel = types.LevelLow, types.RiskHigh
	case fraction > substantialityMediumFraction:
		m.Substantiality, result.RiskLevel = types.LevelMedium, types.RiskMedium
	default:
		m.Substantiality, result.RiskLevel = types.LevelHigh, types.RiskLow
	}
	result.Measurements = m
	result.Metrics = []types.Metric{
		{Name: "low_paragraph_fraction", Value: math.Round(fraction*1000) / 1000},
		{Name: "generic_phrase_count", Value: float64(m.GenericPhraseCount)},
	}
	return result
}

// sectionOrder measures how closely recognized sections follow the canonical
// template: the longest run of sections in template order over the template size.
func sectionOrder(o outline) *types.AnalysisResult {
	var order []int
	for _, s := range o.Sections {
		if _, pos := SectionRole(s.Title); pos >= 0 && s.Title != "" {
			order = append(order, pos)
		}
	}
	result := &types.AnalysisResult{
		RiskLevel: types.RiskLow,
		Metrics:   []types.Metric{{Name: "recognized_sections", Value: float64(len(order))}},
	}
	if len(order) < 2 {
		return result
	}
	match := math.Round(float64(longestIncreasing(order))/float64(len(canonicalSections))*1000) / 10
	result.Measurements.SectionOrderMatch = &match
	result.RiskScore = clampScore(match)
	result.RiskLevel = issues.SectionOrderRisk(match)
	result.Metrics = append(result.Metrics, types.Metric{Name: "section_order_match", Value: match, Unit: "%"})
	return result
}

// longestIncreasing returns the length of the longest strictly increasing subsequence.
func longestIncreasing(seq []int) int {
	tails := make([]int, 0, len(seq))
	for _, v := range seq {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if tails[mid] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo == len(tails) {
			tails = append(tails, v)
		} else {
			tails[lo] = v
		}
	}
	return len(tails)
}

// anchorDensity counts anchors per paragraph. A section context restricts the
// count to paragraphs that belong to a section.
func anchorDensity(ctx context.Context, o outline, upstream *types.Context) (*types.AnalysisResult, error) {
	body := o.body()
	if upstream != nil && upstream.Kind == types.ContextSection {
		member := make(map[int]bool)
		for _, s := range upstream.Sections {
			for _, idx := range s.Paragraphs {
				member[idx] = true
			}
		}
		filtered := body[:0:0]
		for _, b := range body {
			if member[b.Index] {
				filtered = append(filtered, b)
			}
		}
		body = filtered
	}

	stats := make([]types.ParagraphStats, len(body))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(paragraphWorkers)
	for i, b := range body {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stats[i] = types.ParagraphStats{
				Index:         b.Index,
				WordCount:     CountWords(b.Text),
				SentenceCount: len(SplitSentences(b.Text)),
				AnchorCount:   CountAnchors(b.Text),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var words, anchors int
	for _, s := range stats {
		words += s.WordCount
		anchors += s.AnchorCount
	}
	result := &types.AnalysisResult{
		RiskLevel:    types.RiskLow,
		Measurements: types.Measurements{Paragraphs: stats},
		Metrics:      []types.Metric{{Name: "anchor_count", Value: float64(anchors)}},
	}
	if upstream != nil {
		result.Metrics = append(result.Metrics, types.Metric{Name: "sections", Value: float64(len(upstream.Sections))})
	}
	if words == 0 {
		return result, nil
	}
	density := math.Round(float64(anchors)/float64(words)*1000) / 10
	result.Measurements.DocumentAnchorDensity = &density
	result.Metrics = append(result.Metrics, types.Metric{Name: "anchor_density", Value: density, Unit: "per 100 words"})
	result.RiskScore = clampScore((issues.DocumentAnchorDensityMin - density) / issues.DocumentAnchorDensityMin * 100)
	switch {
	case density < issues.DocumentAnchorDensityHigh:
		result.RiskLevel = types.RiskHigh
	case density < issues.DocumentAnchorDensityMin:
		result.RiskLevel = types.RiskMedium
	}
	return result, nil
}

// bodyParagraphs returns the non-heading paragraphs of a paragraph context.
func bodyParagraphs(upstream *types.Context) ([]types.ParagraphContext, error) {
	if upstream == nil || upstream.Kind != types.ContextParagraph {
		return nil, fmt.Errorf("paragraph context is required")
	}
	out := make([]types.ParagraphContext, 0, len(upstream.Paragraphs))
	for _, p := range upstream.Paragraphs {
		if p.Role != RoleHeading {
			out = append(out, p)
		}
	}
	return out, nil
}

func sentenceLength(upstream *types.Context) (*types.AnalysisResult, error) {
	paragraphs, err := bodyParagraphs(upstream)
	if err != nil {
		return nil, err
	}

	result := &types.AnalysisResult{RiskLevel: types.RiskLow}
	var flagged, measured int
	for _, p := range paragraphs {
		sentences := SplitSentences(p.Text)
		stats := types.ParagraphStats{Index: p.Index, WordCount: CountWords(p.Text), SentenceCount: len(sentences)}
		if len(sentences) >= minSentencesForCV {
			lengths := make([]float64, len(sentences))
			for i, s := range sentences {
				lengths[i] = float64(CountWords(s))
			}
			stats.SentenceLengthCV = CV(lengths)
		}
		if stats.SentenceLengthCV != nil {
			measured++
			risk := issues.SentenceLengthRisk(*stats.SentenceLengthCV)
			if risk != types.RiskLow {
				flagged++
			}
			if rank(risk) > rank(result.RiskLevel) {
				result.RiskLevel = risk
			}
		}
		result.Measurements.Paragraphs = append(result.Measurements.Paragraphs, stats)
	}
	if measured > 0 {
		result.RiskScore = clampScore(float64(flagged) / float64(measured) * 100)
	}
	result.Metrics = []types.Metric{
		{Name: "measured_paragraphs", Value: float64(measured)},
		{Name: "uniform_paragraphs", Value: float64(flagged)},
	}
	return result, nil
}

func rank(level types.RiskLevel) int {
	switch level {
	case types.RiskHigh:
		return 2
	case types.RiskMedium:
		return 1
	default:
		return 0
	}
}

// sentencePattern looks for repeated sentence openers, "not only ... but also"
// constructions and stacked em-dashes.
func sentencePattern(upstream *types.Context) (*types.AnalysisResult, error) {
	paragraphs, err := bodyParagraphs(upstream)
	if err != nil {
		return nil, err
	}

	var findings []types.PatternFinding
	notOnly := 0
	for _, p := range paragraphs {
		idx := p.Index
		sentences := SplitSentences(p.Text)

		openers := make(map[string]int)
		for _, s := range sentences {
			if w := opener(s); w != "" {
				openers[w]++
			}
			lower := strings.ToLower(s)
			if (strings.Contains(lower, "not only") && strings.Contains(lower, "but also")) ||
				(strings.Contains(s, "不仅") && (strings.Contains(s, "而且") || strings.Contains(s, "还"))) {
				notOnly++
			}
		}
		for _, w := range sortedKeys(openers) {
			if n := openers[w]; n >= openerRepeatMin {
				findings = append(findings, types.PatternFinding{
					Pattern:       "repeated_opener",
					Description:   fmt.Sprintf("%d sentences in paragraph %d open with %q", n, idx, w),
					DescriptionZH: fmt.Sprintf("第 %d 段有 %d 个句子以“%s”开头", idx, n, w),
					Severity:      types.SeverityMedium,
					Paragraph:     &idx,
				})
			}
		}

		if dashes := strings.Count(p.Text, emDash); dashes >= 3 {
			severity := types.SeverityLow
			if dashes >= 5 {
				severity = types.SeverityMedium
			}
			findings = append(findings, types.PatternFinding{
				Pattern:       "em_dash_stacking",
				Description:   fmt.Sprintf("Paragraph %d uses %d em-dashes", idx, dashes),
				DescriptionZH: fmt.Sprintf("第 %d 段使用了 %d 个破折号", idx, dashes),
				Severity:      severity,
				Paragraph:     &idx,
			})
		}
	}
	if notOnly >= 2 {
		severity := types.SeverityMedium
		if notOnly >= 4 {
			severity = types.SeverityHigh
		}
		findings = append(findings, types.PatternFinding{
			Pattern:       "not_only_but_also",
			Description:   fmt.Sprintf("\"Not only ... but also\" construction used %d times", notOnly),
			DescriptionZH: fmt.Sprintf("“不仅……而且”句式使用了 %d 次", notOnly),
			Severity:      severity,
		})
	}

	weights := map[types.Severity]float64{types.SeverityHigh: 30, types.SeverityMedium: 20, types.SeverityLow: 10}
	score := 0.0
	for _, f := range findings {
		score += weights[f.Severity]
	}
	score = clampScore(score)
	return &types.AnalysisResult{
		RiskScore:    score,
		RiskLevel:    issues.RiskFromScore(score),
		Measurements: types.Measurements{Patterns: findings},
		Metrics:      []types.Metric{{Name: "pattern_count", Value: float64(len(findings))}},
	}, nil
}

// opener returns the lowercased first word of a Latin sentence, or the first
// two characters of a CJK one.
func opener(sentence string) string {
	fields := strings.Fields(sentence)
	if len(fields) == 0 {
		return ""
	}
	first := strings.ToLower(strings.Trim(fields[0], `"'“”‘’(),;:`))
	if isLatin(first) {
		return first
	}
	runes := []rune(first)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return string(runes)
}

func lexical(text string) *types.AnalysisResult {
	hits := FindFingerprints(text)
	words := CountWords(text)

	weighted := 0.0
	for _, h := range hits {
		weighted += tierWeight[h.Tier] * float64(h.Count)
	}
	score := 0.0
	if words > 0 {
		// Weighted hits per 100 words, scaled so that 5 per 100 words saturates.
		score = clampScore(weighted / float64(words) * 100 * 20)
	}
	return &types.AnalysisResult{
		RiskScore:    score,
		RiskLevel:    issues.RiskFromScore(score),
		Measurements: types.Measurements{Fingerprints: hits},
		Metrics: []types.Metric{
			{Name: "fingerprint_words", Value: float64(len(hits))},
			{Name: "weighted_hits", Value: weighted},
		},
	}
}
