package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/types"
)

// Service runs every analyzer locally.
type Service struct {
	logger *zap.Logger
}

// NewService creates a local analysis service.
func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logging.OrNop(logger)}
}

// Analyze runs one analyzer against text.
func (s *Service) Analyze(ctx context.Context, kind types.AnalyzerKind, text string, upstream *types.Context, sessionID string) (*types.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	o := buildOutline(text)

	var (
		result *types.AnalysisResult
		err    error
	)
	switch kind {
	case types.AnalyzerParagraphLength:
		result = paragraphLength(o)
	case types.AnalyzerSubstantiality:
		result = substantiality(o)
	case types.AnalyzerSectionOrder:
		result = sectionOrder(o)
	case types.AnalyzerAnchorDensity:
		result, err = anchorDensity(ctx, o, upstream)
	case types.AnalyzerSentenceLength:
		result, err = sentenceLength(upstream)
	case types.AnalyzerSentencePattern:
		result, err = sentencePattern(upstream)
	case types.AnalyzerLexical:
		result = lexical(text)
	default:
		return nil, fmt.Errorf("unknown analyzer %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	s.logger.Debug("analysis complete",
		zap.String("analyzer", string(kind)),
		zap.String("session_id", sessionID),
		zap.Float64("risk_score", result.RiskScore),
		zap.String("risk_level", string(result.RiskLevel)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// GetContext segments text into the requested upstream context.
func (s *Service) GetContext(ctx context.Context, kind types.ContextKind, text string) (*types.Context, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := buildOutline(text)
	switch kind {
	case types.ContextParagraph:
		return o.paragraphContext(), nil
	case types.ContextSection:
		return o.sectionContext(), nil
	default:
		return nil, fmt.Errorf("unknown context kind %q", kind)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
