// Package issues derives normalized Issue lists from analysis results using fixed thresholds.
// Derivation is a pure function of the result's measurements.
package issues

import "github.com/textaudit/layered-audit/internal/types"

const (
	// ParagraphUniformCV flags paragraph lengths as too uniform below this CV.
	ParagraphUniformCV = 0.30
	// ParagraphVeryUniformCV raises the paragraph-length issue to high severity.
	ParagraphVeryUniformCV = 0.20

	// SentenceHighRiskCV and SentenceMediumRiskCV bound the sentence-length risk bands.
	SentenceHighRiskCV   = 0.25
	SentenceMediumRiskCV = 0.35

	// AnchorHighSeverityCount and AnchorMediumSeverityCount bound per-paragraph anchor counts.
	AnchorHighSeverityCount   = 3
	AnchorMediumSeverityCount = 5

	// DocumentAnchorDensityMin and DocumentAnchorDensityHigh bound anchors per 100 words.
	DocumentAnchorDensityMin  = 5.0
	DocumentAnchorDensityHigh = 3.0

	// SectionOrderHighMatch and SectionOrderMediumMatch bound the template-likeness percentage.
	SectionOrderHighMatch   = 80.0
	SectionOrderMediumMatch = 60.0

	// GenericPhraseHighCount raises the generic-phrase issue to high severity above this count.
	GenericPhraseHighCount = 10
)

// SentenceLengthRisk classifies a paragraph's sentence-length CV.
func SentenceLengthRisk(cv float64) types.RiskLevel {
	switch {
	case cv < SentenceHighRiskCV:
		return types.RiskHigh
	case cv < SentenceMediumRiskCV:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// AnchorSeverity classifies a paragraph's anchor count. ok is false when no issue applies.
func AnchorSeverity(count int) (severity types.Severity, ok bool) {
	switch {
	case count < AnchorHighSeverityCount:
		return types.SeverityHigh, true
	case count < AnchorMediumSeverityCount:
		return types.SeverityMedium, true
	default:
		return "", false
	}
}

// SectionOrderRisk classifies a section order match percentage.
func SectionOrderRisk(match float64) types.RiskLevel {
	switch {
	case match >= SectionOrderHighMatch:
		return types.RiskHigh
	case match >= SectionOrderMediumMatch:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}

// RiskFromScore maps a 0-100 risk score to a level. Used when a service omits the level.
func RiskFromScore(score float64) types.RiskLevel {
	switch {
	case score >= 60:
		return types.RiskHigh
	case score >= 30:
		return types.RiskMedium
	default:
		return types.RiskLow
	}
}
