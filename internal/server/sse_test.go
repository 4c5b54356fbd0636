package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textaudit/layered-audit/internal/pipeline"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/types"
)

// noFlush hides the recorder's Flush method.
type noFlush struct{ http.ResponseWriter }

func TestOpenAuditStream_Headers(t *testing.T) {
	w := httptest.NewRecorder()
	_, err := openAuditStream(w, "sess-1")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "retry: 3000\n\n", w.Body.String())
}

func TestOpenAuditStream_RequiresFlusher(t *testing.T) {
	w := httptest.NewRecorder()
	_, err := openAuditStream(noFlush{w}, "sess-1")
	require.Error(t, err)
	assert.Empty(t, w.Body.String())
}

func TestAuditStream_EventsAreNumbered(t *testing.T) {
	w := httptest.NewRecorder()
	stream, err := openAuditStream(w, "sess-1")
	require.NoError(t, err)

	require.NoError(t, stream.Progress(pipeline.ProgressEvent{Step: "layer1-step5-1", Status: steps.StatusInProgress, Message: "analysing"}))
	require.NoError(t, stream.Finish(&pipeline.WorkflowResult{
		Statuses: map[types.StageID]steps.StepStatus{
			"layer5-step1-1": steps.StatusCompleted,
			"layer1-step5-1": steps.StatusCompleted,
			"layer3-step3-1": steps.StatusFailed,
			"layer2-step4-1": steps.StatusBlocked,
		},
	}))

	body := w.Body.String()
	assert.Contains(t, body, "id: 1\nevent: progress\ndata: ")
	assert.Contains(t, body, `"step":"layer1-step5-1"`)
	assert.Contains(t, body, "id: 2\nevent: complete\ndata: ")
	assert.Contains(t, body, `"session_id":"sess-1","completed":2,"failed":1,"blocked":1`)
	assert.Less(t, strings.Index(body, "event: progress"), strings.Index(body, "event: complete"))
}

func TestAuditStream_Fail(t *testing.T) {
	w := httptest.NewRecorder()
	stream, err := openAuditStream(w, "sess-1")
	require.NoError(t, err)

	require.NoError(t, stream.Fail(errors.New("context canceled")))

	body := w.Body.String()
	assert.Contains(t, body, "id: 1\nevent: error\n")
	assert.Contains(t, body, `"error":"context canceled"`)
	assert.NotContains(t, body, "event: complete")
}
