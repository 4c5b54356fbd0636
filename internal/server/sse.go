package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/textaudit/layered-audit/internal/pipeline"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
)

// Stream event names.
const (
	eventProgress = "progress"
	eventError    = "error"
	eventComplete = "complete"
)

// reconnectDelayMillis is sent as the stream's retry hint.
const reconnectDelayMillis = 3000

// auditStream writes the progress of one audit run as Server-Sent Events.
// Every event carries a sequential id so a client can tell whether it missed one.
type auditStream struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	sessionID string
	seq       int
}

// completeEvent is the payload of the final event of a successful run.
type completeEvent struct {
	SessionID string                   `json:"session_id"`
	Completed int                      `json:"completed"`
	Failed    int                      `json:"failed"`
	Blocked   int                      `json:"blocked"`
	Result    *pipeline.WorkflowResult `json:"result"`
}

// openAuditStream commits the response headers. It fails before writing
// anything when w cannot flush.
func openAuditStream(w http.ResponseWriter, sessionID string) (*auditStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &auditStream{w: w, flusher: flusher, sessionID: sessionID}
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", reconnectDelayMillis); err != nil {
		return nil, err
	}
	flusher.Flush()
	return s, nil
}

func (s *auditStream) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %s\nevent: %s\ndata: %s\n\n", strconv.Itoa(s.seq), event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Progress forwards one workflow progress event.
func (s *auditStream) Progress(event pipeline.ProgressEvent) error {
	return s.send(eventProgress, event)
}

// Fail ends the stream with an error event shaped like an HTTP error body.
func (s *auditStream) Fail(err error) error {
	return s.send(eventError, newErrorBody(err))
}

// Finish ends the stream with the run's outcome and per-status totals.
func (s *auditStream) Finish(result *pipeline.WorkflowResult) error {
	ev := completeEvent{SessionID: s.sessionID, Result: result}
	for _, status := range result.Statuses {
		switch status {
		case steps.StatusCompleted:
			ev.Completed++
		case steps.StatusFailed:
			ev.Failed++
		case steps.StatusBlocked:
			ev.Blocked++
		}
	}
	return s.send(eventComplete, ev)
}
