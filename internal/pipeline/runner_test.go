package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/issues"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/services/servicetest"
	"github.com/textaudit/layered-audit/internal/types"
)

func cv(v float64) *float64 { return &v }

func TestRunner_NormalizesAndDerives(t *testing.T) {
	analysis := servicetest.NewAnalysis()
	analysis.Results[types.AnalyzerSentenceLength] = &types.AnalysisResult{
		Measurements: types.Measurements{Paragraphs: []types.ParagraphStats{
			{Index: 0, SentenceLengthCV: cv(0.30)},
			{Index: 1, SentenceLengthCV: cv(0.40)},
		}},
	}
	r := NewRunner(analysis, nil)
	def := steps.StepRegistry["layer2-step4-1"].StageDef

	got, err := r.Run(context.Background(), def, Input{Text: "text", Context: paragraphContext(), SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, def.ID, got.Result.Stage)
	assert.Equal(t, types.RiskMedium, got.Result.RiskLevel)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, issues.KindUniformSentenceLength, got.Issues[0].Kind)
	assert.Equal(t, types.LayerSentence, got.Issues[0].Layer)

	calls := analysis.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, types.AnalyzerSentenceLength, calls[0].Kind)
	assert.Equal(t, "s1", calls[0].SessionID)
	assert.Equal(t, paragraphContext(), calls[0].Context)
}

func TestRunner_SentenceRiskBands(t *testing.T) {
	tests := []struct {
		cv   float64
		want types.RiskLevel
	}{
		{0.24, types.RiskHigh},
		{0.30, types.RiskMedium},
		{0.40, types.RiskLow},
	}
	for _, tt := range tests {
		analysis := servicetest.NewAnalysis()
		analysis.Results[types.AnalyzerSentenceLength] = &types.AnalysisResult{
			Measurements: types.Measurements{Paragraphs: []types.ParagraphStats{{SentenceLengthCV: cv(tt.cv)}}},
		}
		got, err := NewRunner(analysis, nil).Run(context.Background(), steps.StepRegistry["layer2-step4-1"].StageDef, Input{Text: "t"})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Result.RiskLevel, "cv=%v", tt.cv)
	}
}

func TestRunner_KeepsServiceRiskLevel(t *testing.T) {
	analysis := servicetest.NewAnalysis()
	analysis.Results[types.AnalyzerLexical] = &types.AnalysisResult{RiskScore: 90, RiskLevel: types.RiskLow}

	got, err := NewRunner(analysis, nil).Run(context.Background(), steps.StepRegistry["layer1-step5-1"].StageDef, Input{Text: "t"})
	require.NoError(t, err)
	assert.Equal(t, types.RiskLow, got.Result.RiskLevel)
}

func TestRunner_ScoreFallback(t *testing.T) {
	analysis := servicetest.NewAnalysis()
	analysis.Results[types.AnalyzerLexical] = &types.AnalysisResult{RiskScore: 45}

	got, err := NewRunner(analysis, nil).Run(context.Background(), steps.StepRegistry["layer1-step5-1"].StageDef, Input{Text: "t"})
	require.NoError(t, err)
	assert.Equal(t, types.RiskMedium, got.Result.RiskLevel)
}

func TestRunner_FailureKeepsNoResult(t *testing.T) {
	analysis := servicetest.NewAnalysis()
	analysis.AnalyzeErr = errors.New("503")

	got, err := NewRunner(analysis, nil).Run(context.Background(), steps.StepRegistry["layer5-step1-1"].StageDef, Input{Text: "t"})
	assert.Nil(t, got)
	assert.True(t, types.IsKind(err, types.ErrAnalysisFailed))
}
