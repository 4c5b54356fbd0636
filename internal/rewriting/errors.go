// Package rewriting produces LLM-backed remediation: per-issue suggestions,
// revision prompts and rewritten document text.
package rewriting

import "fmt"

// APICallError represents a failed language model call
type APICallError struct {
	Message string
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("API call failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("API call failed: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// ParseError represents a model response that could not be decoded or validated
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to parse response: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to parse response: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// AttemptsExhaustedError is returned when a session has no automatic revisions left
type AttemptsExhaustedError struct {
	Key string
	Max int
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("no revision attempts left for %s (limit %d)", e.Key, e.Max)
}
