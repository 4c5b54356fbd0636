package selection

import (
	"context"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
)

// Engine loads a remediation suggestion for a selection.
//
// The suggestion collaborator takes a single issue, so only the first selected
// issue (lowest index in the issue list, not first clicked) is sent. Later
// selected issues get no suggestion of their own.
type Engine struct {
	svc    services.SuggestionService
	quick  bool
	logger *zap.Logger
}

// NewEngine creates an Engine. quick selects the collaborator's fast mode.
func NewEngine(svc services.SuggestionService, quick bool, logger *zap.Logger) *Engine {
	return &Engine{svc: svc, quick: quick, logger: logging.OrNop(logger)}
}

// Target returns the issue a suggestion would be loaded for.
func Target(stage types.StageID, list []types.Issue, sel *Set) (types.Issue, error) {
	first, ok := sel.First()
	if !ok || first >= len(list) {
		return types.Issue{}, types.NewStageError(types.ErrEmptySelection, stage, "select at least one issue", nil)
	}
	return list[first], nil
}

// Load fetches the suggestion for issue. Failures are reported as
// ErrSuggestionUnavailable and leave the selection untouched.
func (e *Engine) Load(ctx context.Context, stage types.StageID, documentID string, issue types.Issue) (*types.Suggestion, error) {
	if !document.ValidID(documentID) {
		return nil, types.NewStageError(types.ErrDocumentUnresolved, stage, "suggestion needs a resolved document", nil)
	}

	suggestion, err := e.svc.GetIssueSuggestion(ctx, documentID, issue, e.quick)
	if err != nil {
		e.logger.Warn("suggestion failed",
			zap.String("stage", string(stage)),
			zap.String("issue_kind", issue.Kind),
			zap.Error(err))
		return nil, types.NewStageError(types.ErrSuggestionUnavailable, stage, "failed to load suggestion", err)
	}
	if suggestion == nil {
		return nil, types.NewStageError(types.ErrSuggestionUnavailable, stage, "suggestion service returned nothing", nil)
	}
	return suggestion, nil
}
