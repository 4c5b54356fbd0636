// Package server provides the HTTP API of the layered audit pipeline.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/session"
	"github.com/textaudit/layered-audit/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// kindStatus maps the audit error taxonomy onto HTTP status codes.
var kindStatus = map[types.ErrorKind]int{
	types.ErrDocumentUnresolved:         http.StatusUnprocessableEntity,
	types.ErrDocumentTextMissing:        http.StatusFailedDependency,
	types.ErrUpstreamContextUnavailable: http.StatusBadGateway,
	types.ErrAnalysisFailed:             http.StatusBadGateway,
	types.ErrSuggestionUnavailable:      http.StatusBadGateway,
	types.ErrRevisionFailed:             http.StatusBadGateway,
	types.ErrNoRevisionContent:          http.StatusBadRequest,
	types.ErrEmptySelection:             http.StatusBadRequest,
	types.ErrAcknowledgmentRequired:     http.StatusPreconditionRequired,
	types.ErrInvalidTransition:          http.StatusConflict,
	types.ErrRunInProgress:              http.StatusConflict,
	types.ErrUnknownStage:               http.StatusNotFound,
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		stageErr       *types.StageError
		validationErr  *ErrValidation
		fieldErrs      validator.ValidationErrors
		docNotFound    *document.NotFoundError
		sessNotFound   *session.NotFoundError
		unsupportedErr *document.UnsupportedFormatError
	)
	switch {
	case errors.As(err, &stageErr):
		if status, ok := kindStatus[stageErr.Kind]; ok {
			return status
		}
		return http.StatusInternalServerError
	case errors.As(err, &validationErr), errors.As(err, &fieldErrs):
		return http.StatusBadRequest
	case errors.As(err, &docNotFound), errors.As(err, &sessNotFound):
		return http.StatusNotFound
	case errors.As(err, &unsupportedErr):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string          `json:"error"`
	Kind      types.ErrorKind `json:"kind,omitempty"`
	Retryable bool            `json:"retryable,omitempty"`
	Fields    []fieldError    `json:"fields,omitempty"`
}

type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func newErrorBody(err error) errorBody {
	body := errorBody{Error: err.Error()}
	var stageErr *types.StageError
	if errors.As(err, &stageErr) {
		body.Kind = stageErr.Kind
		body.Retryable = stageErr.Retryable()
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		body.Error = "invalid request body"
		for _, fe := range fieldErrs {
			body.Fields = append(body.Fields, fieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
	}
	return body
}
