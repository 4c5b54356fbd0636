//nolint:revive // types is a standard Go package name pattern
package types

// RevisionMode selects between a human-actionable prompt and an automatic rewrite.
type RevisionMode string

// Revision modes.
const (
	ModePrompt RevisionMode = "prompt"
	ModeApply  RevisionMode = "apply"
)

// Valid reports whether m is a known mode.
func (m RevisionMode) Valid() bool {
	return m == ModePrompt || m == ModeApply
}

// RevisionOptions are the optional parameters passed to the revision collaborator.
type RevisionOptions struct {
	SessionID string `json:"session_id,omitempty"`
	UserNotes string `json:"user_notes,omitempty"`
}

// RevisionRequest is the payload sent to the revision collaborator.
type RevisionRequest struct {
	DocumentID string          `json:"document_id"`
	Issues     []Issue         `json:"issues"`
	Mode       RevisionMode    `json:"mode"`
	Options    RevisionOptions `json:"options"`
}

// PromptResult is text the user applies manually.
type PromptResult struct {
	Prompt           string `json:"prompt"`
	EstimatedChanges int    `json:"estimated_changes"`
}

// ApplyResult is an already-modified document text.
type ApplyResult struct {
	ModifiedText      string   `json:"modified_text"`
	ChangesSummary    []string `json:"changes_summary"`
	RemainingAttempts int      `json:"remaining_attempts"`
}

// Strategy is one remediation approach for an Issue.
type Strategy struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Example     string `json:"example,omitempty"`
}

// Suggestion is a detailed remediation for exactly one Issue.
type Suggestion struct {
	Diagnosis    string     `json:"diagnosis"`
	Strategies   []Strategy `json:"strategies"`
	PriorityTips []string   `json:"priority_tips,omitempty"`
	ExampleFix   string     `json:"example_fix,omitempty"`
}
