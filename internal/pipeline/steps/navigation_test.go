package steps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/services/servicetest"
	"github.com/textaudit/layered-audit/internal/types"
)

func newNavigator(t *testing.T, text string) (*Navigator, *servicetest.Sessions, string) {
	t.Helper()
	docs := servicetest.NewDocuments(map[string]string{"doc-1": text})
	sessions := servicetest.NewSessions()
	session, err := sessions.Create(context.Background(), "doc-1")
	require.NoError(t, err)
	return NewNavigator(sessions, document.NewResolver(docs, sessions, nil), nil), sessions, session.ID
}

func TestNavigator_EnterUpdatesProgress(t *testing.T) {
	nav, sessions, sessionID := newNavigator(t, "Some text.")

	pos, err := nav.Enter(context.Background(), sessionID, "layer4-step2-1")
	require.NoError(t, err)
	assert.Equal(t, types.StageID("layer4-step2-1"), pos.Current.ID)
	assert.Equal(t, types.StageID("layer5-step1-2"), pos.Previous.ID)
	assert.Equal(t, types.StageID("layer3-step3-1"), pos.Next.ID)
	nav.Wait()
	assert.Equal(t, []types.StageID{"layer4-step2-1"}, sessions.RecordedSteps())
}

func TestNavigator_EnterIgnoresProgressFailure(t *testing.T) {
	nav, sessions, sessionID := newNavigator(t, "Some text.")
	sessions.UpdateErr = errors.New("redis down")

	_, err := nav.Enter(context.Background(), sessionID, "layer5-step1-1")
	assert.NoError(t, err)
	nav.Wait()
	assert.Len(t, sessions.RecordedSteps(), 1)
}

func TestNavigator_EnterDoesNotWaitForProgressUpdate(t *testing.T) {
	nav, sessions, sessionID := newNavigator(t, "Some text.")
	sessions.UpdateGate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := nav.Enter(context.Background(), sessionID, "layer4-step2-1")
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Enter blocked on the session store")
	}
	assert.Empty(t, sessions.RecordedSteps())

	close(sessions.UpdateGate)
	nav.Wait()
	assert.Equal(t, []types.StageID{"layer4-step2-1"}, sessions.RecordedSteps())
}

func TestNavigator_ProgressUpdateOutlivesRequestContext(t *testing.T) {
	nav, sessions, sessionID := newNavigator(t, "Some text.")
	sessions.UpdateGate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := nav.Enter(ctx, sessionID, "layer4-step2-1")
	require.NoError(t, err)
	cancel()

	sessions.UpdateGate <- struct{}{}
	nav.Wait()
	assert.Equal(t, []types.StageID{"layer4-step2-1"}, sessions.RecordedSteps())
}

func TestNavigator_EnterUnknownStage(t *testing.T) {
	nav, sessions, sessionID := newNavigator(t, "Some text.")

	_, err := nav.Enter(context.Background(), sessionID, "layer0")
	assert.True(t, types.IsKind(err, types.ErrUnknownStage))
	nav.Wait()
	assert.Empty(t, sessions.RecordedSteps())
}

func TestNavigator_SkipMarksSuccessor(t *testing.T) {
	nav, sessions, sessionID := newNavigator(t, "Some text.")

	pos, err := nav.Skip(context.Background(), "layer5-step1-1", document.Ref{SessionID: sessionID})
	require.NoError(t, err)
	assert.Equal(t, types.StageID("layer5-step1-2"), pos.Current.ID)
	nav.Wait()
	assert.Equal(t, []types.StageID{"layer5-step1-2"}, sessions.RecordedSteps())
}

func TestNavigator_SkipRequiresResolvedDocument(t *testing.T) {
	nav, sessions, sessionID := newNavigator(t, "")

	_, err := nav.Skip(context.Background(), "layer5-step1-1", document.Ref{SessionID: sessionID})
	assert.True(t, types.IsKind(err, types.ErrDocumentTextMissing))
	nav.Wait()
	assert.Empty(t, sessions.RecordedSteps())

	_, err = nav.Skip(context.Background(), "layer5-step1-1", document.Ref{})
	assert.True(t, types.IsKind(err, types.ErrDocumentUnresolved))
}

func TestNavigator_SkipFromLastStage(t *testing.T) {
	nav, _, sessionID := newNavigator(t, "Some text.")

	_, err := nav.Skip(context.Background(), "layer1-step5-1", document.Ref{SessionID: sessionID})
	assert.True(t, types.IsKind(err, types.ErrInvalidTransition))
}
