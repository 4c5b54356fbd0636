package issues

import (
	"fmt"

	"github.com/textaudit/layered-audit/internal/types"
)

// Issue kinds.
const (
	KindUniformParagraphLength   = "uniform_paragraph_length"
	KindUniformSentenceLength    = "uniform_sentence_length"
	KindLowAnchorDensity         = "low_anchor_density"
	KindLowDocumentAnchorDensity = "low_document_anchor_density"
	KindTemplateSectionOrder     = "template_section_order"
	KindContentSubstantiality    = "content_substantiality"
	KindLowSubstantiality        = "low_substantiality_paragraph"
	KindGenericPhrases           = "generic_phrases"
	KindFingerprintWord          = "ai_fingerprint_word"
	KindSentencePattern          = "sentence_pattern"
)

// Derive computes the Issue list for a stage's analysis result.
// Every returned issue is tagged for fabrication risk.
func Derive(layer types.Layer, analyzer types.AnalyzerKind, result *types.AnalysisResult) []types.Issue {
	if result == nil {
		return nil
	}
	m := result.Measurements

	var out []types.Issue
	switch analyzer {
	case types.AnalyzerParagraphLength:
		out = paragraphLength(m)
	case types.AnalyzerSentenceLength:
		out = sentenceLength(m)
	case types.AnalyzerAnchorDensity:
		out = anchorDensity(m)
	case types.AnalyzerSectionOrder:
		out = sectionOrder(m)
	case types.AnalyzerSubstantiality:
		out = substantiality(m)
	case types.AnalyzerLexical:
		out = fingerprints(m)
	case types.AnalyzerSentencePattern:
		out = patterns(m)
	}

	for i := range out {
		out[i].Layer = layer
		out[i] = Tag(out[i])
	}
	return out
}

func paragraphLength(m types.Measurements) []types.Issue {
	if m.ParagraphLengthCV == nil || *m.ParagraphLengthCV >= ParagraphUniformCV {
		return nil
	}
	cv := *m.ParagraphLengthCV
	severity := types.SeverityMedium
	if cv < ParagraphVeryUniformCV {
		severity = types.SeverityHigh
	}
	return []types.Issue{{
		Kind:          KindUniformParagraphLength,
		Description:   fmt.Sprintf("Paragraph lengths are too uniform (CV %.2f, expected at least %.2f)", cv, ParagraphUniformCV),
		DescriptionZH: fmt.Sprintf("段落长度过于均匀（变异系数 %.2f，建议不低于 %.2f）", cv, ParagraphUniformCV),
		Severity:      severity,
	}}
}

func sentenceLength(m types.Measurements) []types.Issue {
	var out []types.Issue
	for _, p := range m.Paragraphs {
		if p.SentenceLengthCV == nil {
			continue
		}
		cv := *p.SentenceLengthCV
		var severity types.Severity
		switch SentenceLengthRisk(cv) {
		case types.RiskHigh:
			severity = types.SeverityHigh
		case types.RiskMedium:
			severity = types.SeverityMedium
		default:
			continue
		}
		out = append(out, types.Issue{
			Kind:          KindUniformSentenceLength,
			Description:   fmt.Sprintf("Sentence lengths in paragraph %d are too uniform (CV %.2f)", p.Index, cv),
			DescriptionZH: fmt.Sprintf("第 %d 段句子长度过于均匀（变异系数 %.2f）", p.Index, cv),
			Severity:      severity,
			Location:      paragraphLocation(p.Index),
		})
	}
	return out
}

func anchorDensity(m types.Measurements) []types.Issue {
	var out []types.Issue
	if m.DocumentAnchorDensity != nil && *m.DocumentAnchorDensity < DocumentAnchorDensityMin {
		density := *m.DocumentAnchorDensity
		severity := types.SeverityMedium
		if density < DocumentAnchorDensityHigh {
			severity = types.SeverityHigh
		}
		out = append(out, types.Issue{
			Kind:          KindLowDocumentAnchorDensity,
			Description:   fmt.Sprintf("Document anchor density is %.1f per 100 words (expected at least %.0f)", density, DocumentAnchorDensityMin),
			DescriptionZH: fmt.Sprintf("全文锚点密度为每百词 %.1f 个（建议不低于 %.0f）", density, DocumentAnchorDensityMin),
			Severity:      severity,
		})
	}
	for _, p := range m.Paragraphs {
		severity, ok := AnchorSeverity(p.AnchorCount)
		if !ok {
			continue
		}
		out = append(out, types.Issue{
			Kind:          KindLowAnchorDensity,
			Description:   fmt.Sprintf("Paragraph %d has only %d anchors", p.Index, p.AnchorCount),
			DescriptionZH: fmt.Sprintf("第 %d 段仅有 %d 个锚点", p.Index, p.AnchorCount),
			Severity:      severity,
			Location:      paragraphLocation(p.Index),
		})
	}
	return out
}

func sectionOrder(m types.Measurements) []types.Issue {
	if m.SectionOrderMatch == nil {
		return nil
	}
	match := *m.SectionOrderMatch
	var severity types.Severity
	switch SectionOrderRisk(match) {
	case types.RiskHigh:
		severity = types.SeverityHigh
	case types.RiskMedium:
		severity = types.SeverityMedium
	default:
		return nil
	}
	return []types.Issue{{
		Kind:          KindTemplateSectionOrder,
		Description:   fmt.Sprintf("Section order matches the standard template at %.0f%%", match),
		DescriptionZH: fmt.Sprintf("章节顺序与标准模板吻合度为 %.0f%%，结构过于模板化", match),
		Severity:      severity,
	}}
}

func substantiality(m types.Measurements) []types.Issue {
	var out []types.Issue

	levelSeverity := map[types.Level]types.Severity{
		types.LevelLow:    types.SeverityHigh,
		types.LevelMedium: types.SeverityMedium,
		types.LevelHigh:   types.SeverityLow,
	}
	if severity, ok := levelSeverity[m.Substantiality]; ok {
		out = append(out, types.Issue{
			Kind:          KindContentSubstantiality,
			Description:   fmt.Sprintf("Overall content substantiality is %s", m.Substantiality),
			DescriptionZH: fmt.Sprintf("整体内容充实度：%s", m.Substantiality),
			Severity:      severity,
		})
	}

	for _, idx := range m.LowSubstantialityParagraphs {
		out = append(out, types.Issue{
			Kind:          KindLowSubstantiality,
			Description:   fmt.Sprintf("Paragraph %d lacks specific content", idx),
			DescriptionZH: fmt.Sprintf("第 %d 段内容空泛", idx),
			Severity:      types.SeverityMedium,
			Location:      paragraphLocation(idx),
		})
	}

	if m.GenericPhraseCount > 0 {
		severity := types.SeverityMedium
		if m.GenericPhraseCount > GenericPhraseHighCount {
			severity = types.SeverityHigh
		}
		out = append(out, types.Issue{
			Kind:          KindGenericPhrases,
			Description:   fmt.Sprintf("Found %d generic phrases", m.GenericPhraseCount),
			DescriptionZH: fmt.Sprintf("发现 %d 处空泛套话", m.GenericPhraseCount),
			Severity:      severity,
		})
	}
	return out
}

func fingerprints(m types.Measurements) []types.Issue {
	var out []types.Issue
	for _, hit := range m.Fingerprints {
		severity := types.Severity(hit.Tier)
		if severity == "" {
			severity = types.SeverityLow
		}
		out = append(out, types.Issue{
			Kind:          KindFingerprintWord,
			Description:   fmt.Sprintf("Fingerprint word %q appears %d times", hit.Word, hit.Count),
			DescriptionZH: fmt.Sprintf("指纹词“%s”出现 %d 次", hit.Word, hit.Count),
			Severity:      severity,
		})
	}
	return out
}

// patternNamesZH names the known patterns for findings that arrive without
// localized text.
var patternNamesZH = map[string]string{
	"repeated_opener":   "多个句子使用相同的句首词",
	"em_dash_stacking":  "破折号使用过多",
	"not_only_but_also": "“不仅……而且”句式使用过多",
}

func patterns(m types.Measurements) []types.Issue {
	var out []types.Issue
	for _, f := range m.Patterns {
		zh := f.DescriptionZH
		if zh == "" {
			zh = patternNamesZH[f.Pattern]
		}
		if zh == "" {
			zh = "检测到重复的句式模式"
		}
		issue := types.Issue{
			Kind:          KindSentencePattern,
			Description:   f.Description,
			DescriptionZH: zh,
			Severity:      f.Severity,
		}
		if f.Pattern != "" {
			issue.Kind = KindSentencePattern + ":" + f.Pattern
		}
		if f.Paragraph != nil {
			issue.Location = paragraphLocation(*f.Paragraph)
		}
		out = append(out, issue)
	}
	return out
}

func paragraphLocation(index int) *types.Location {
	idx := index
	return &types.Location{Paragraph: &idx}
}
