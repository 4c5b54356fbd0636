//nolint:revive // types is a standard Go package name pattern
package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a stage-scoped failure.
type ErrorKind string

// Error kinds surfaced by the pipeline.
const (
	// ErrDocumentUnresolved means no document id could be resolved. Terminal for the stage.
	ErrDocumentUnresolved ErrorKind = "document_unresolved"
	// ErrDocumentTextMissing means the id resolved but its text could not be fetched or was empty.
	ErrDocumentTextMissing ErrorKind = "document_text_missing"
	// ErrUpstreamContextUnavailable means the upstream context fetch failed; folded into analysis failure.
	ErrUpstreamContextUnavailable ErrorKind = "upstream_context_unavailable"
	// ErrAnalysisFailed means the analysis collaborator failed.
	ErrAnalysisFailed ErrorKind = "analysis_failed"
	// ErrSuggestionUnavailable means the suggestion collaborator failed. Dismissible.
	ErrSuggestionUnavailable ErrorKind = "suggestion_unavailable"
	// ErrRevisionFailed means the revision collaborator failed. The selection is preserved.
	ErrRevisionFailed ErrorKind = "revision_failed"
	// ErrNoRevisionContent means a version transition had neither file nor text (or both).
	ErrNoRevisionContent ErrorKind = "no_revision_content"
	// ErrAcknowledgmentRequired means a fabrication-risk selection needs explicit acknowledgment.
	ErrAcknowledgmentRequired ErrorKind = "acknowledgment_required"
	// ErrInvalidTransition means an event is not accepted in the current state.
	ErrInvalidTransition ErrorKind = "invalid_transition"
	// ErrUnknownStage means a stage tag is not part of the pipeline graph.
	ErrUnknownStage ErrorKind = "unknown_stage"
	// ErrRunInProgress means a run for the stage is already in flight.
	ErrRunInProgress ErrorKind = "run_in_progress"
	// ErrEmptySelection means an operation needs at least one selected issue.
	ErrEmptySelection ErrorKind = "empty_selection"
)

// StageError is a stage-scoped failure with a taxonomy kind.
type StageError struct {
	Kind    ErrorKind
	Stage   StageID
	Message string
	Cause   error
}

// NewStageError builds a StageError.
func NewStageError(kind ErrorKind, stage StageID, message string, cause error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

func (e *StageError) Error() string {
	prefix := string(e.Kind)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Kind, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the user may retry the failed operation.
// Nothing in the pipeline retries automatically.
func (e *StageError) Retryable() bool {
	switch e.Kind {
	case ErrDocumentTextMissing, ErrUpstreamContextUnavailable, ErrAnalysisFailed,
		ErrSuggestionUnavailable, ErrRevisionFailed:
		return true
	default:
		return false
	}
}

// KindOf returns the ErrorKind carried by err, or "" if err is not a StageError.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
