package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/revision"
	"github.com/textaudit/layered-audit/internal/selection"
	"github.com/textaudit/layered-audit/internal/services/servicetest"
	"github.com/textaudit/layered-audit/internal/types"
)

type fixture struct {
	docs        *servicetest.Documents
	sessions    *servicetest.Sessions
	analysis    *servicetest.Analysis
	suggestions *servicetest.Suggestions
	revisions   *servicetest.Revisions
	sessionID   string
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	f := &fixture{
		docs:        servicetest.NewDocuments(map[string]string{"doc-1": text}),
		sessions:    servicetest.NewSessions(),
		analysis:    servicetest.NewAnalysis(),
		suggestions: &servicetest.Suggestions{},
		revisions:   &servicetest.Revisions{},
	}
	session, err := f.sessions.Create(context.Background(), "doc-1")
	require.NoError(t, err)
	f.sessionID = session.ID
	return f
}

func (f *fixture) deps() Deps {
	return Deps{
		Resolver:    document.NewResolver(f.docs, f.sessions, nil),
		Analysis:    f.analysis,
		Suggestions: selection.NewEngine(f.suggestions, false, nil),
		Revisions:   f.revisions,
		Versions:    revision.NewTransitioner(f.docs, f.sessions, nil),
		Metrics:     NewMetrics(nil),
	}
}

func (f *fixture) stage(id types.StageID) *Stage {
	return NewStage(steps.StepRegistry[id].StageDef, document.Ref{SessionID: f.sessionID}, f.deps(), nil)
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for analysis call")
	}
}

func TestStage_ScenarioEmptyTextThenRetry(t *testing.T) {
	f := newFixture(t, "")
	st := f.stage("layer5-step1-1")

	_, err := st.Run(context.Background())
	require.True(t, types.IsKind(err, types.ErrDocumentTextMissing))
	assert.Empty(t, f.analysis.Calls(), "analysis must not run while the text is empty")

	view := st.Snapshot()
	assert.Equal(t, PhaseResolveFailed, view.Phase)
	assert.True(t, view.Retryable)

	f.docs.SetText("doc-1", "First paragraph.\n\nSecond paragraph.")
	a, err := st.Retry(context.Background())
	require.NoError(t, err)
	require.NotNil(t, a)

	calls := f.analysis.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", calls[0].Text)
	assert.Equal(t, f.sessionID, calls[0].SessionID)
	assert.Equal(t, PhaseAnalyzed, st.Snapshot().Phase)
}

func TestStage_UnresolvedDocumentIsTerminal(t *testing.T) {
	f := newFixture(t, "text")
	session, err := f.sessions.Create(context.Background(), "")
	require.NoError(t, err)
	st := NewStage(steps.StepRegistry["layer5-step1-1"].StageDef, document.Ref{RouteID: "undefined", SessionID: session.ID}, f.deps(), nil)

	_, err = st.Run(context.Background())
	require.True(t, types.IsKind(err, types.ErrDocumentUnresolved))

	_, err = st.Retry(context.Background())
	assert.True(t, types.IsKind(err, types.ErrDocumentUnresolved))
	assert.False(t, st.Snapshot().Retryable)
	assert.Empty(t, f.analysis.Calls())
}

func TestStage_GuardSuppressesConcurrentTrigger(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.Gate = make(chan struct{})
	f.analysis.Started = make(chan struct{}, 4)
	st := f.stage("layer5-step1-1")

	done := make(chan error, 1)
	go func() {
		_, err := st.Run(context.Background())
		done <- err
	}()
	waitSignal(t, f.analysis.Started)

	for i := 0; i < 3; i++ {
		_, err := st.Run(context.Background())
		assert.True(t, types.IsKind(err, types.ErrRunInProgress))
	}
	assert.True(t, st.Snapshot().Running)

	f.analysis.Gate <- struct{}{}
	require.NoError(t, <-done)
	assert.Len(t, f.analysis.Calls(), 1)
	assert.False(t, st.Snapshot().Running)
}

func TestStage_StaleResultDiscardedAfterRebind(t *testing.T) {
	f := newFixture(t, "old text")
	f.docs.SetText("doc-2", "new text")
	f.analysis.Gate = make(chan struct{})
	f.analysis.Started = make(chan struct{}, 4)
	st := f.stage("layer5-step1-1")

	done := make(chan error, 1)
	go func() {
		_, err := st.Run(context.Background())
		done <- err
	}()
	waitSignal(t, f.analysis.Started)

	st.Rebind("doc-2")
	f.analysis.Gate <- struct{}{}

	waitSignal(t, f.analysis.Started)
	f.analysis.Gate <- struct{}{}
	require.NoError(t, <-done)

	calls := f.analysis.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "old text", calls[0].Text)
	assert.Equal(t, "new text", calls[1].Text)

	view := st.Snapshot()
	assert.Equal(t, "doc-2", view.DocumentID)
	assert.Equal(t, PhaseAnalyzed, view.Phase)
}

func waitFetch(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for document fetch")
		return ""
	}
}

func TestStage_RebindDuringResolveBindsNewDocument(t *testing.T) {
	f := newFixture(t, "old text")
	f.docs.SetText("doc-2", "new text")
	f.docs.GetGate = make(chan struct{})
	f.docs.GetStarted = make(chan string, 4)
	st := f.stage("layer5-step1-1")

	done := make(chan error, 1)
	go func() {
		_, err := st.Run(context.Background())
		done <- err
	}()
	require.Equal(t, "doc-1", waitFetch(t, f.docs.GetStarted))

	st.Rebind("doc-2")
	f.docs.GetGate <- struct{}{}

	require.Equal(t, "doc-2", waitFetch(t, f.docs.GetStarted))
	f.docs.GetGate <- struct{}{}
	require.NoError(t, <-done)

	calls := f.analysis.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "new text", calls[0].Text)

	view := st.Snapshot()
	assert.Equal(t, "doc-2", view.DocumentID)
	assert.Equal(t, PhaseAnalyzed, view.Phase)
}

func TestStage_ResolveFailureKeepsBoundAnalysis(t *testing.T) {
	f := newFixture(t, "Some text.")
	st := f.stage("layer5-step1-1")

	_, err := st.Run(context.Background())
	require.NoError(t, err)

	f.docs.GetErr = errors.New("timeout")
	_, err = st.Resolve(context.Background())
	require.True(t, types.IsKind(err, types.ErrDocumentTextMissing))

	view := st.Snapshot()
	assert.Equal(t, PhaseAnalyzed, view.Phase)
	assert.Equal(t, "doc-1", view.DocumentID)
	assert.NotNil(t, view.Result)
	assert.Empty(t, view.Error)
	// Past the phase check: only the empty selection is refused.
	err = st.RequestRevision(types.ModePrompt)
	assert.True(t, types.IsKind(err, types.ErrEmptySelection))
}

func TestStage_ContextFailureBlocksAnalysis(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.ContextErr = errors.New("segmenter down")
	st := f.stage("layer2-step4-1")

	_, err := st.Run(context.Background())
	require.True(t, types.IsKind(err, types.ErrUpstreamContextUnavailable))
	assert.Empty(t, f.analysis.Calls())
	assert.Equal(t, PhaseFailed, st.Snapshot().Phase)

	f.analysis.ContextErr = nil
	f.analysis.Contexts[types.ContextParagraph] = paragraphContext()
	_, err = st.Retry(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Some text.", "Some text."}, f.analysis.ContextCalls())
	require.Len(t, f.analysis.Calls(), 1)
	assert.Equal(t, paragraphContext(), f.analysis.Calls()[0].Context)
}

func TestStage_RetryReplaysSamePair(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.Contexts[types.ContextParagraph] = paragraphContext()
	f.analysis.SetAnalyzeErr(errors.New("timeout"))
	st := f.stage("layer2-step4-2")

	_, err := st.Run(context.Background())
	require.True(t, types.IsKind(err, types.ErrAnalysisFailed))
	view := st.Snapshot()
	assert.Nil(t, view.Result)
	assert.True(t, view.Retryable)

	f.analysis.SetAnalyzeErr(nil)
	_, err = st.Retry(context.Background())
	require.NoError(t, err)

	calls := f.analysis.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].Text, calls[1].Text)
	assert.Equal(t, calls[0].Context, calls[1].Context)
	assert.Len(t, f.analysis.ContextCalls(), 1)
}

func TestStage_FailureDropsPreviousResult(t *testing.T) {
	f := newFixture(t, "Some text.")
	st := f.stage("layer1-step5-1")

	_, err := st.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st.Snapshot().Result)

	f.analysis.SetAnalyzeErr(errors.New("boom"))
	_, err = st.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, st.Snapshot().Result)
	assert.Empty(t, st.Snapshot().Issues)
}

func TestStage_RetryWithoutFailure(t *testing.T) {
	f := newFixture(t, "Some text.")
	st := f.stage("layer1-step5-1")

	_, err := st.Retry(context.Background())
	assert.True(t, types.IsKind(err, types.ErrInvalidTransition))
}

func anchorResult() *types.AnalysisResult {
	return &types.AnalysisResult{Measurements: types.Measurements{Paragraphs: []types.ParagraphStats{
		{Index: 0, AnchorCount: 1},
		{Index: 1, AnchorCount: 4},
		{Index: 2, AnchorCount: 9},
	}}}
}

func TestStage_ToggleAndSuggestion(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.Results[types.AnalyzerAnchorDensity] = anchorResult()
	st := f.stage("layer3-step3-1")

	assert.True(t, types.IsKind(st.Toggle(0), types.ErrInvalidTransition), "no issues before analysis")

	_, err := st.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, st.Snapshot().Issues, 2)

	_, err = st.LoadSuggestion(context.Background())
	assert.True(t, types.IsKind(err, types.ErrEmptySelection))

	require.NoError(t, st.Toggle(1))
	require.NoError(t, st.Toggle(0))
	assert.Equal(t, []int{0, 1}, st.Snapshot().Selected)

	sug, err := st.LoadSuggestion(context.Background())
	require.NoError(t, err)
	require.Len(t, f.suggestions.Asked, 1)
	assert.Equal(t, st.Snapshot().Issues[0], f.suggestions.Asked[0])
	assert.Equal(t, sug, st.Snapshot().Suggestion)

	require.NoError(t, st.Toggle(1))
	require.NoError(t, st.Toggle(1))
	view := st.Snapshot()
	assert.Equal(t, []int{0, 1}, view.Selected)
	assert.Nil(t, view.Suggestion, "toggling invalidates the suggestion")

	assert.True(t, types.IsKind(st.Toggle(5), types.ErrInvalidTransition))
}

func TestStage_SuggestionFailureIsDismissible(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.Results[types.AnalyzerAnchorDensity] = anchorResult()
	f.suggestions.Err = errors.New("llm quota")
	st := f.stage("layer3-step3-1")

	_, err := st.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Toggle(0))

	_, err = st.LoadSuggestion(context.Background())
	require.True(t, types.IsKind(err, types.ErrSuggestionUnavailable))
	view := st.Snapshot()
	assert.NotEmpty(t, view.SuggestionError)
	assert.Equal(t, []int{0}, view.Selected)

	st.DismissSuggestion()
	assert.Empty(t, st.Snapshot().SuggestionError)
	require.NoError(t, st.RequestRevision(types.ModePrompt), "a failed suggestion does not block revisions")
}

func TestStage_ScenarioRiskyApplyToNewVersion(t *testing.T) {
	f := newFixture(t, "Original text.")
	f.analysis.Contexts[types.ContextParagraph] = paragraphContext()
	f.analysis.Results[types.AnalyzerSentencePattern] = &types.AnalysisResult{Measurements: types.Measurements{Patterns: []types.PatternFinding{
		{Pattern: "unsupported_claim", Description: "Claim lacks an anchor or citation", Severity: types.SeverityHigh},
		{Pattern: "repeated_opener", Description: "Three sentences open with the same word", Severity: types.SeverityMedium},
	}}}
	st := f.stage("layer2-step4-2")

	_, err := st.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Toggle(0))
	require.NoError(t, st.Toggle(1))

	require.NoError(t, st.RequestRevision(types.ModeApply))
	require.NoError(t, st.ConfirmRevision(context.Background(), ""))
	assert.Equal(t, revision.StateAwaitingAck, st.Snapshot().Revision.State)
	assert.Empty(t, f.revisions.Recorded(), "nothing is submitted before acknowledgment")

	require.NoError(t, st.AcknowledgeRevision(context.Background()))
	view := st.Snapshot()
	require.Equal(t, revision.StateResultApply, view.Revision.State)
	assert.NotEmpty(t, view.Revision.Apply.ModifiedText)

	reqs := f.revisions.Recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "doc-1", reqs[0].DocumentID)
	assert.Len(t, reqs[0].Issues, 2)
	assert.Equal(t, f.sessionID, reqs[0].Options.SessionID)

	require.NoError(t, st.AcceptRevision())
	assert.Equal(t, revision.StateAwaitingAck, st.Snapshot().Revision.State)
	require.NoError(t, st.AcknowledgeRevision(context.Background()))
	assert.True(t, st.Snapshot().Revision.HasPendingEdit)

	newID, err := st.CommitVersion(context.Background(), nil, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, "doc-1", newID)

	original, err := f.docs.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Original text.", original.Text)

	session, err := f.sessions.GetCurrent(context.Background(), f.sessionID)
	require.NoError(t, err)
	assert.Equal(t, newID, session.DocumentID)

	view = st.Snapshot()
	assert.Equal(t, PhaseUnresolved, view.Phase)
	assert.False(t, view.Revision.HasPendingEdit)

	_, err = st.Run(context.Background())
	require.NoError(t, err)
	calls := f.analysis.Calls()
	assert.Equal(t, "revised text", calls[len(calls)-1].Text)
}

func TestStage_NonRiskySubmitsDirectly(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.Results[types.AnalyzerParagraphLength] = &types.AnalysisResult{Measurements: types.Measurements{ParagraphLengthCV: cv(0.1)}}
	st := f.stage("layer5-step1-1")

	_, err := st.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Toggle(0))
	require.NoError(t, st.RequestRevision(types.ModeApply))
	require.NoError(t, st.ConfirmRevision(context.Background(), "notes"))

	assert.Equal(t, revision.StateResultApply, st.Snapshot().Revision.State)
	require.NoError(t, st.AcceptRevision())
	assert.Equal(t, revision.StateIdle, st.Snapshot().Revision.State)
}

func TestStage_RevisionFailurePreservesSelection(t *testing.T) {
	f := newFixture(t, "Some text.")
	f.analysis.Results[types.AnalyzerParagraphLength] = &types.AnalysisResult{Measurements: types.Measurements{ParagraphLengthCV: cv(0.1)}}
	f.revisions.Err = errors.New("model overloaded")
	st := f.stage("layer5-step1-1")

	_, err := st.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Toggle(0))
	require.NoError(t, st.RequestRevision(types.ModePrompt))

	err = st.ConfirmRevision(context.Background(), "")
	require.True(t, types.IsKind(err, types.ErrRevisionFailed))

	view := st.Snapshot()
	assert.Equal(t, revision.StateIdle, view.Revision.State)
	assert.NotEmpty(t, view.Revision.Error)
	assert.Equal(t, []int{0}, view.Selected)
}

func TestStage_CommitVersionNeedsContent(t *testing.T) {
	f := newFixture(t, "Some text.")
	st := f.stage("layer5-step1-1")

	_, err := st.CommitVersion(context.Background(), nil, "", "")
	assert.True(t, types.IsKind(err, types.ErrNoRevisionContent))
	assert.Empty(t, f.docs.Uploads)
}

func TestStage_CommitVersionFromUpload(t *testing.T) {
	f := newFixture(t, "Some text.")
	st := f.stage("layer5-step1-1")

	id, err := st.CommitVersion(context.Background(), &types.Upload{Filename: "v2.md", Data: []byte("Edited.")}, "", "")
	require.NoError(t, err)

	doc, err := f.docs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ParentID)
}

func TestStage_OnComplete(t *testing.T) {
	f := newFixture(t, "Some text.")
	var got []types.StageID
	st := NewStage(steps.StepRegistry["layer1-step5-1"].StageDef, document.Ref{SessionID: f.sessionID}, f.deps(),
		func(id types.StageID, _ *Analysis) { got = append(got, id) })

	_, err := st.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.StageID{"layer1-step5-1"}, got)
}
