package rewriting

import (
	"context"
	"sync"

	"github.com/textaudit/layered-audit/internal/llm"
)

// fakeClient returns queued responses and records prompts.
type fakeClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
	tiers     []llm.ModelTier
}

func (f *fakeClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return f.GenerateJSON(ctx, prompt, tier)
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.tiers = append(f.tiers, tier)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "{}", nil
	}
	next := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return next, nil
}

func (f *fakeClient) Close() error { return nil }
