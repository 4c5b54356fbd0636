package revision

import (
	"context"
	"errors"
	"strings"

	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
)

// errEmptyRevision is returned when an apply call yields no text.
var errEmptyRevision = errors.New("revision service returned empty text")

// Submit performs the collaborator call for a submission. Prompt and apply
// calls receive the identical issue list and options.
func Submit(ctx context.Context, svc services.RevisionService, documentID, sessionID string, sub *Submission) (*types.PromptResult, *types.ApplyResult, error) {
	opts := types.RevisionOptions{SessionID: sessionID, UserNotes: sub.Notes}

	if sub.Mode == types.ModePrompt {
		prompt, err := svc.GeneratePrompt(ctx, documentID, sub.Issues, opts)
		if err != nil {
			return nil, nil, err
		}
		return prompt, nil, nil
	}

	apply, err := svc.ApplyModify(ctx, documentID, sub.Issues, opts)
	if err != nil {
		return nil, nil, err
	}
	if apply == nil || strings.TrimSpace(apply.ModifiedText) == "" {
		return nil, nil, errEmptyRevision
	}
	return nil, apply, nil
}
