package rewriting

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/llm"
	"github.com/textaudit/layered-audit/internal/services/servicetest"
	"github.com/textaudit/layered-audit/internal/types"
)

const suggestionJSON = `{
  "diagnosis": "Every paragraph has about forty words.",
  "strategies": [{"title": "Merge", "description": "Merge the second and third paragraphs."}],
  "priority_tips": ["Start with the introduction"]
}`

func located(idx int) *types.Location {
	return &types.Location{Paragraph: &idx}
}

func TestAdvisor_GetIssueSuggestion(t *testing.T) {
	docs := servicetest.NewDocuments(map[string]string{"doc-1": "First paragraph.\n\nSecond paragraph about results."})
	client := &fakeClient{responses: []string{suggestionJSON}}
	advisor := NewAdvisor(client, docs, nil)

	issue := types.Issue{
		Kind:        "low_anchor_density",
		Description: "Paragraph 1 has only 0 anchors",
		Severity:    types.SeverityHigh,
		Layer:       types.LayerParagraph,
		Location:    located(1),
	}
	got, err := advisor.GetIssueSuggestion(context.Background(), "doc-1", issue, false)
	require.NoError(t, err)

	assert.Equal(t, "Every paragraph has about forty words.", got.Diagnosis)
	require.Len(t, got.Strategies, 1)
	assert.Equal(t, "Merge", got.Strategies[0].Title)
	assert.Equal(t, []string{"Start with the introduction"}, got.PriorityTips)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Second paragraph about results.")
	assert.NotContains(t, client.prompts[0], "First paragraph.")
	assert.Contains(t, client.prompts[0], "Paragraph 1 has only 0 anchors")
	assert.Equal(t, llm.TierStandard, client.tiers[0])
}

func TestAdvisor_QuickModeUsesLiteTier(t *testing.T) {
	docs := servicetest.NewDocuments(map[string]string{"doc-1": "Some text."})
	client := &fakeClient{responses: []string{suggestionJSON}}
	advisor := NewAdvisor(client, docs, nil)

	_, err := advisor.GetIssueSuggestion(context.Background(), "doc-1", types.Issue{Description: "x"}, true)
	require.NoError(t, err)
	assert.Equal(t, llm.TierLite, client.tiers[0])
}

func TestAdvisor_Errors(t *testing.T) {
	docs := servicetest.NewDocuments(map[string]string{"doc-1": "Some text."})

	_, err := NewAdvisor(&fakeClient{}, docs, nil).GetIssueSuggestion(context.Background(), "missing", types.Issue{}, false)
	assert.Error(t, err)

	var apiErr *APICallError
	_, err = NewAdvisor(&fakeClient{err: errors.New("quota")}, docs, nil).GetIssueSuggestion(context.Background(), "doc-1", types.Issue{}, false)
	assert.ErrorAs(t, err, &apiErr)

	var parseErr *ParseError
	_, err = NewAdvisor(&fakeClient{responses: []string{`{"diagnosis": "x"}`}}, docs, nil).GetIssueSuggestion(context.Background(), "doc-1", types.Issue{}, false)
	assert.ErrorAs(t, err, &parseErr)
}

func TestExcerpt(t *testing.T) {
	text := "Zero.\n\nOne."
	assert.Equal(t, "One.", excerpt(text, types.Issue{Location: located(1)}, 100))
	assert.Equal(t, "Zero.\n\nOne.", excerpt(text, types.Issue{Location: located(9)}, 100))
	assert.Equal(t, "Zer…", excerpt(text, types.Issue{}, 3))
}
