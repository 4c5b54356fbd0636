package rewriting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/llm"
	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/prompts"
	"github.com/textaudit/layered-audit/internal/schemas"
	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
	files "github.com/textaudit/layered-audit/schemas"
)

// Advisor implements services.SuggestionService.
type Advisor struct {
	client llm.Client
	docs   services.DocumentService
	logger *zap.Logger
}

// NewAdvisor creates an Advisor.
func NewAdvisor(client llm.Client, docs services.DocumentService, logger *zap.Logger) *Advisor {
	return &Advisor{client: client, docs: docs, logger: logging.OrNop(logger)}
}

// GetIssueSuggestion asks the model for remediation advice on one issue.
// Quick mode uses the lite model, a shorter excerpt and a shorter answer.
func (a *Advisor) GetIssueSuggestion(ctx context.Context, documentID string, issue types.Issue, quickMode bool) (*types.Suggestion, error) {
	doc, err := a.docs.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}

	key, tier, limit := "issue-suggestion", llm.TierStandard, excerptLimit
	if quickMode {
		key, tier, limit = "issue-suggestion-quick", llm.TierLite, quickExcerptLimit
	}
	prompt, err := prompts.Render(prompts.SuggestionFile, key, map[string]string{
		"Layer":    string(issue.Layer),
		"Issue":    issue.Description,
		"Severity": string(issue.Severity),
		"Excerpt":  excerpt(doc.Text, issue, limit),
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := a.client.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		return nil, &APICallError{Message: "failed to generate suggestion", Cause: err}
	}
	var suggestion types.Suggestion
	if err := schemas.Decode(files.Suggestion, raw, &suggestion); err != nil {
		return nil, &ParseError{Message: "unusable suggestion", Cause: err}
	}

	a.logger.Info("suggestion generated",
		zap.String("document_id", documentID),
		zap.String("issue_kind", issue.Kind),
		zap.Bool("quick", quickMode),
		zap.Duration("duration", time.Since(start)),
	)
	return &suggestion, nil
}
