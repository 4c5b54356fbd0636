// Package services declares the collaborator contracts the audit pipeline consumes.
// Transport is not part of these contracts; implementations live in db, session,
// document, scoring and rewriting.
package services

import (
	"context"

	"github.com/textaudit/layered-audit/internal/types"
)

// DocumentService stores and returns document versions.
type DocumentService interface {
	// Get returns the document with the given id.
	Get(ctx context.Context, id string) (*types.Document, error)
	// Upload extracts text from a file and persists it as a new document.
	Upload(ctx context.Context, file *types.Upload, parentID string) (string, error)
	// UploadText persists text as a new document.
	UploadText(ctx context.Context, text, filename, parentID string) (string, error)
}

// SessionService tracks pipeline progress per session.
type SessionService interface {
	// Create starts a session, optionally pinned to a document.
	Create(ctx context.Context, documentID string) (*types.Session, error)
	// GetCurrent returns the session, including its pinned document id.
	GetCurrent(ctx context.Context, sessionID string) (*types.Session, error)
	// UpdateStep records the stage the user entered.
	UpdateStep(ctx context.Context, sessionID string, step types.StageID) error
	// PinDocument makes documentID the active document for the session.
	PinDocument(ctx context.Context, sessionID, documentID string) error
}

// AnalysisService runs the per-layer scoring operations.
type AnalysisService interface {
	// Analyze runs one analyzer against text with an optional upstream context.
	Analyze(ctx context.Context, kind types.AnalyzerKind, text string, upstream *types.Context, sessionID string) (*types.AnalysisResult, error)
	// GetContext produces the upstream context snapshot of the given kind for text.
	GetContext(ctx context.Context, kind types.ContextKind, text string) (*types.Context, error)
}

// SuggestionService produces remediation advice for a single issue.
type SuggestionService interface {
	GetIssueSuggestion(ctx context.Context, documentID string, issue types.Issue, quickMode bool) (*types.Suggestion, error)
}

// RevisionService produces prompts or rewritten text for a set of issues.
type RevisionService interface {
	GeneratePrompt(ctx context.Context, documentID string, issues []types.Issue, opts types.RevisionOptions) (*types.PromptResult, error)
	ApplyModify(ctx context.Context, documentID string, issues []types.Issue, opts types.RevisionOptions) (*types.ApplyResult, error)
}
