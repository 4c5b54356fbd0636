package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/issues"
	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
)

// Input is the exact (text, context) pair an analysis run consumed.
// A retry replays it unchanged.
type Input struct {
	Text      string
	Context   *types.Context
	SessionID string
}

// Analysis is the normalized output of a successful run.
type Analysis struct {
	Result *types.AnalysisResult `json:"result"`
	Issues []types.Issue         `json:"issues"`
}

// Runner invokes a stage's analysis operation and normalizes its result.
type Runner struct {
	analysis services.AnalysisService
	logger   *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(analysis services.AnalysisService, logger *zap.Logger) *Runner {
	return &Runner{analysis: analysis, logger: logging.OrNop(logger)}
}

// Run analyses in.Text for the stage. On failure nothing of the result is returned.
func (r *Runner) Run(ctx context.Context, def types.StageDef, in Input) (*Analysis, error) {
	result, err := r.analysis.Analyze(ctx, def.Analyzer, in.Text, in.Context, in.SessionID)
	if err != nil {
		r.logger.Warn("analysis failed",
			zap.String("stage", string(def.ID)),
			zap.String("analyzer", string(def.Analyzer)),
			zap.Error(err))
		return nil, types.NewStageError(types.ErrAnalysisFailed, def.ID, "analysis call failed", err)
	}
	if result == nil {
		return nil, types.NewStageError(types.ErrAnalysisFailed, def.ID, "analysis returned no result", nil)
	}

	normalized := *result
	normalized.Stage = def.ID
	if normalized.RiskLevel == "" {
		normalized.RiskLevel = riskLevel(def.Analyzer, normalized)
	}

	return &Analysis{
		Result: &normalized,
		Issues: issues.Derive(def.Layer, def.Analyzer, &normalized),
	}, nil
}

// riskLevel derives a level for services that report only measurements or a score.
func riskLevel(analyzer types.AnalyzerKind, result types.AnalysisResult) types.RiskLevel {
	m := result.Measurements
	switch analyzer {
	case types.AnalyzerSectionOrder:
		if m.SectionOrderMatch != nil {
			return issues.SectionOrderRisk(*m.SectionOrderMatch)
		}
	case types.AnalyzerSentenceLength:
		level, seen := types.RiskLow, false
		for _, p := range m.Paragraphs {
			if p.SentenceLengthCV == nil {
				continue
			}
			seen = true
			if rank(issues.SentenceLengthRisk(*p.SentenceLengthCV)) > rank(level) {
				level = issues.SentenceLengthRisk(*p.SentenceLengthCV)
			}
		}
		if seen {
			return level
		}
	}
	return issues.RiskFromScore(result.RiskScore)
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
