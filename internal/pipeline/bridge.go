package pipeline

import (
	"context"

	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
)

// Bridge fetches the upstream layer context a downstream stage consumes.
// Context is never cached: every run fetches it again for the text it is about
// to analyse.
type Bridge struct {
	analysis services.AnalysisService
}

// NewBridge creates a Bridge.
func NewBridge(analysis services.AnalysisService) *Bridge {
	return &Bridge{analysis: analysis}
}

// Fetch issues exactly one context call for stages that declare a context and
// none for stages that do not. A failed fetch blocks the run even when the
// context is optional; a required context must also be non-empty.
func (b *Bridge) Fetch(ctx context.Context, def types.StageDef, text string) (*types.Context, error) {
	if def.Context == types.ContextNone {
		return nil, nil
	}

	upstream, err := b.analysis.GetContext(ctx, def.Context, text)
	if err != nil {
		return nil, types.NewStageError(types.ErrUpstreamContextUnavailable, def.ID,
			"failed to fetch "+string(def.Context)+" context", err)
	}
	if def.ContextRequired && contextEmpty(upstream) {
		return nil, types.NewStageError(types.ErrUpstreamContextUnavailable, def.ID,
			string(def.Context)+" context is empty", nil)
	}
	return upstream, nil
}

func contextEmpty(c *types.Context) bool {
	return c == nil || (len(c.Paragraphs) == 0 && len(c.Sections) == 0)
}
