package rewriting

import (
	"context"
	"fmt"
	"strings"
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

// Reviser implements services.RevisionService.
// Automatic rewrites are limited per session; prompts are not.
type Reviser struct {
	client   llm.Client
	docs     services.DocumentService
	attempts *attemptTracker
	logger   *zap.Logger
}

// NewReviser creates a Reviser allowing maxAttempts rewrites per session.
// A session's count is forgotten after attemptTTL without a rewrite.
func NewReviser(client llm.Client, docs services.DocumentService, maxAttempts int, attemptTTL time.Duration, logger *zap.Logger) *Reviser {
	return &Reviser{
		client:   client,
		docs:     docs,
		attempts: newAttemptTracker(maxAttempts, attemptTTL),
		logger:   logging.OrNop(logger),
	}
}

// RemainingAttempts reports the automatic rewrites left for a session.
func (r *Reviser) RemainingAttempts(sessionID string) int {
	return r.attempts.remaining(sessionID)
}

// GeneratePrompt produces instructions the author applies by hand.
func (r *Reviser) GeneratePrompt(ctx context.Context, documentID string, issues []types.Issue, opts types.RevisionOptions) (*types.PromptResult, error) {
	prompt, err := r.buildPrompt(ctx, "revision-prompt", documentID, issues, opts)
	if err != nil {
		return nil, err
	}

	raw, err := r.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, &APICallError{Message: "failed to generate revision prompt", Cause: err}
	}
	var result types.PromptResult
	if err := schemas.Decode(files.RevisionPrompt, raw, &result); err != nil {
		return nil, &ParseError{Message: "unusable revision prompt", Cause: err}
	}
	if result.EstimatedChanges == 0 {
		result.EstimatedChanges = len(issues)
	}
	return &result, nil
}

// ApplyModify rewrites the document. A session that has used all its attempts
// fails without calling the model; a failed call does not use an attempt.
func (r *Reviser) ApplyModify(ctx context.Context, documentID string, issues []types.Issue, opts types.RevisionOptions) (*types.ApplyResult, error) {
	key := opts.SessionID
	if key == "" {
		key = documentID
	}
	if !r.attempts.reserve(key) {
		return nil, &AttemptsExhaustedError{Key: key, Max: r.attempts.limit}
	}

	result, original, err := r.applyModify(ctx, documentID, issues, opts)
	if err != nil {
		r.attempts.refund(key)
		return nil, err
	}
	result.RemainingAttempts = r.attempts.remaining(key)

	if words := introducedFingerprints(original, result.ModifiedText); len(words) > 0 {
		result.ChangesSummary = append(result.ChangesSummary,
			fmt.Sprintf("Warning: the revision introduces fingerprint words: %s", strings.Join(words, ", ")))
	}
	return result, nil
}

func (r *Reviser) applyModify(ctx context.Context, documentID string, issues []types.Issue, opts types.RevisionOptions) (*types.ApplyResult, string, error) {
	doc, err := r.docs.Get(ctx, documentID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load document %s: %w", documentID, err)
	}
	prompt, err := r.formatPrompt("revision-apply", doc.Text, issues, opts)
	if err != nil {
		return nil, "", err
	}

	start := time.Now()
	raw, err := r.client.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return nil, "", &APICallError{Message: "failed to generate revision", Cause: err}
	}
	var result types.ApplyResult
	if err := schemas.Decode(files.RevisionApply, raw, &result); err != nil {
		return nil, "", &ParseError{Message: "unusable revision", Cause: err}
	}

	r.logger.Info("revision generated",
		zap.String("document_id", documentID),
		zap.String("session_id", opts.SessionID),
		zap.Int("issues", len(issues)),
		zap.Duration("duration", time.Since(start)),
	)
	return &result, doc.Text, nil
}

func (r *Reviser) buildPrompt(ctx context.Context, key, documentID string, issues []types.Issue, opts types.RevisionOptions) (string, error) {
	doc, err := r.docs.Get(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("failed to load document %s: %w", documentID, err)
	}
	return r.formatPrompt(key, doc.Text, issues, opts)
}

func (r *Reviser) formatPrompt(key, text string, issues []types.Issue, opts types.RevisionOptions) (string, error) {
	notes := strings.TrimSpace(opts.UserNotes)
	if notes == "" {
		notes = "(none)"
	}
	return prompts.Render(prompts.RevisionFile, key, map[string]string{
		"Issues": formatIssues(issues),
		"Notes":  notes,
		"Text":   text,
	})
}

func formatIssues(issues []types.Issue) string {
	var sb strings.Builder
	for i, issue := range issues {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, issue.String())
	}
	return strings.TrimRight(sb.String(), "\n")
}
