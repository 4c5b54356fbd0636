package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/types"
)

func f(v float64) *float64 { return &v }

func TestSentenceLengthRisk(t *testing.T) {
	tests := []struct {
		cv   float64
		want types.RiskLevel
	}{
		{0.24, types.RiskHigh},
		{0.25, types.RiskMedium},
		{0.30, types.RiskMedium},
		{0.349, types.RiskMedium},
		{0.35, types.RiskLow},
		{0.40, types.RiskLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SentenceLengthRisk(tt.cv), "cv=%v", tt.cv)
	}
}

func TestSectionOrderRisk(t *testing.T) {
	assert.Equal(t, types.RiskHigh, SectionOrderRisk(80))
	assert.Equal(t, types.RiskHigh, SectionOrderRisk(95))
	assert.Equal(t, types.RiskMedium, SectionOrderRisk(60))
	assert.Equal(t, types.RiskMedium, SectionOrderRisk(79.9))
	assert.Equal(t, types.RiskLow, SectionOrderRisk(59.9))
}

func TestDerive_ParagraphLength(t *testing.T) {
	tests := []struct {
		name     string
		cv       *float64
		wantKind string
		wantSev  types.Severity
	}{
		{"no measurement", nil, "", ""},
		{"varied", f(0.45), "", ""},
		{"boundary is not flagged", f(0.30), "", ""},
		{"uniform", f(0.25), KindUniformParagraphLength, types.SeverityMedium},
		{"very uniform", f(0.10), KindUniformParagraphLength, types.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &types.AnalysisResult{Measurements: types.Measurements{ParagraphLengthCV: tt.cv}}
			got := Derive(types.LayerDocument, types.AnalyzerParagraphLength, result)
			if tt.wantKind == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantKind, got[0].Kind)
			assert.Equal(t, tt.wantSev, got[0].Severity)
			assert.Equal(t, types.LayerDocument, got[0].Layer)
			assert.False(t, got[0].FabricationRisk, "paragraph length issues never need acknowledgment")
		})
	}
}

func TestDerive_SentenceLength(t *testing.T) {
	result := &types.AnalysisResult{Measurements: types.Measurements{Paragraphs: []types.ParagraphStats{
		{Index: 0, SentenceLengthCV: f(0.24)},
		{Index: 1, SentenceLengthCV: f(0.30)},
		{Index: 2, SentenceLengthCV: f(0.40)},
		{Index: 3},
	}}}

	got := Derive(types.LayerSentence, types.AnalyzerSentenceLength, result)
	require.Len(t, got, 2)
	assert.Equal(t, types.SeverityHigh, got[0].Severity)
	assert.Equal(t, 0, *got[0].Location.Paragraph)
	assert.Equal(t, types.SeverityMedium, got[1].Severity)
	assert.Equal(t, 1, *got[1].Location.Paragraph)
}

func TestDerive_AnchorDensityPerParagraph(t *testing.T) {
	result := &types.AnalysisResult{Measurements: types.Measurements{Paragraphs: []types.ParagraphStats{
		{Index: 0, AnchorCount: 2},
		{Index: 1, AnchorCount: 4},
		{Index: 2, AnchorCount: 6},
	}}}

	got := Derive(types.LayerParagraph, types.AnalyzerAnchorDensity, result)
	require.Len(t, got, 2)
	assert.Equal(t, KindLowAnchorDensity, got[0].Kind)
	assert.Equal(t, types.SeverityHigh, got[0].Severity)
	assert.Equal(t, types.SeverityMedium, got[1].Severity)
	for _, issue := range got {
		assert.True(t, issue.FabricationRisk)
	}
}

func TestDerive_DocumentAnchorDensity(t *testing.T) {
	tests := []struct {
		density float64
		want    types.Severity
	}{
		{2.5, types.SeverityHigh},
		{4.0, types.SeverityMedium},
		{5.0, ""},
	}
	for _, tt := range tests {
		result := &types.AnalysisResult{Measurements: types.Measurements{DocumentAnchorDensity: f(tt.density)}}
		got := Derive(types.LayerParagraph, types.AnalyzerAnchorDensity, result)
		if tt.want == "" {
			assert.Empty(t, got)
			continue
		}
		require.Len(t, got, 1)
		assert.Equal(t, KindLowDocumentAnchorDensity, got[0].Kind)
		assert.Equal(t, tt.want, got[0].Severity)
	}
}

func TestDerive_SectionOrder(t *testing.T) {
	high := Derive(types.LayerSection, types.AnalyzerSectionOrder, &types.AnalysisResult{Measurements: types.Measurements{SectionOrderMatch: f(85)}})
	require.Len(t, high, 1)
	assert.Equal(t, types.SeverityHigh, high[0].Severity)

	medium := Derive(types.LayerSection, types.AnalyzerSectionOrder, &types.AnalysisResult{Measurements: types.Measurements{SectionOrderMatch: f(70)}})
	require.Len(t, medium, 1)
	assert.Equal(t, types.SeverityMedium, medium[0].Severity)

	low := Derive(types.LayerSection, types.AnalyzerSectionOrder, &types.AnalysisResult{Measurements: types.Measurements{SectionOrderMatch: f(40)}})
	assert.Empty(t, low)
}

func TestDerive_Substantiality(t *testing.T) {
	result := &types.AnalysisResult{Measurements: types.Measurements{
		Substantiality:              types.LevelLow,
		LowSubstantialityParagraphs: []int{1, 4},
		GenericPhraseCount:          12,
	}}

	got := Derive(types.LayerDocument, types.AnalyzerSubstantiality, result)
	require.Len(t, got, 4)
	assert.Equal(t, KindContentSubstantiality, got[0].Kind)
	assert.Equal(t, types.SeverityHigh, got[0].Severity)
	assert.Equal(t, KindLowSubstantiality, got[1].Kind)
	assert.Equal(t, 4, *got[2].Location.Paragraph)
	assert.Equal(t, KindGenericPhrases, got[3].Kind)
	assert.Equal(t, types.SeverityHigh, got[3].Severity)
}

func TestDerive_SubstantialityLevels(t *testing.T) {
	levels := map[types.Level]types.Severity{
		types.LevelLow:    types.SeverityHigh,
		types.LevelMedium: types.SeverityMedium,
		types.LevelHigh:   types.SeverityLow,
	}
	for level, want := range levels {
		got := Derive(types.LayerDocument, types.AnalyzerSubstantiality, &types.AnalysisResult{Measurements: types.Measurements{Substantiality: level}})
		require.Len(t, got, 1)
		assert.Equal(t, want, got[0].Severity)
	}

	few := Derive(types.LayerDocument, types.AnalyzerSubstantiality, &types.AnalysisResult{Measurements: types.Measurements{GenericPhraseCount: 3}})
	require.Len(t, few, 1)
	assert.Equal(t, types.SeverityMedium, few[0].Severity)
}

func TestDerive_FingerprintsAndPatterns(t *testing.T) {
	para := 2
	result := &types.AnalysisResult{Measurements: types.Measurements{
		Fingerprints: []types.FingerprintHit{{Word: "delve", Count: 3, Tier: types.LevelHigh}},
		Patterns:     []types.PatternFinding{{Pattern: "repeated_opener", Description: "Three sentences open with 'Moreover'", Severity: types.SeverityMedium, Paragraph: &para}},
	}}

	lex := Derive(types.LayerLexical, types.AnalyzerLexical, result)
	require.Len(t, lex, 1)
	assert.Equal(t, types.SeverityHigh, lex[0].Severity)

	pat := Derive(types.LayerSentence, types.AnalyzerSentencePattern, result)
	require.Len(t, pat, 1)
	assert.Equal(t, "sentence_pattern:repeated_opener", pat[0].Kind)
	assert.Equal(t, 2, *pat[0].Location.Paragraph)
	assert.Equal(t, "多个句子使用相同的句首词", pat[0].DescriptionZH, "known pattern without localized text")
}

func TestDerive_PatternDescriptionZH(t *testing.T) {
	result := &types.AnalysisResult{Measurements: types.Measurements{Patterns: []types.PatternFinding{
		{Pattern: "em_dash_stacking", Description: "Paragraph 1 uses 4 em-dashes", DescriptionZH: "第 1 段使用了 4 个破折号", Severity: types.SeverityLow},
		{Pattern: "rhetorical_question", Description: "Rhetorical questions", Severity: types.SeverityLow},
	}}}

	pat := Derive(types.LayerSentence, types.AnalyzerSentencePattern, result)
	require.Len(t, pat, 2)
	assert.Equal(t, "第 1 段使用了 4 个破折号", pat[0].DescriptionZH)
	assert.NotEmpty(t, pat[1].DescriptionZH)
	for _, issue := range pat {
		assert.NotEmpty(t, issue.Description)
	}
}

func TestDerive_NilResult(t *testing.T) {
	assert.Nil(t, Derive(types.LayerDocument, types.AnalyzerParagraphLength, nil))
}

func TestDerive_IsDeterministic(t *testing.T) {
	result := &types.AnalysisResult{Measurements: types.Measurements{Paragraphs: []types.ParagraphStats{
		{Index: 0, AnchorCount: 1},
		{Index: 1, AnchorCount: 3},
	}}}
	first := Derive(types.LayerParagraph, types.AnalyzerAnchorDensity, result)
	second := Derive(types.LayerParagraph, types.AnalyzerAnchorDensity, result)
	assert.Equal(t, first, second)
}
