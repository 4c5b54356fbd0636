// Package types provides type definitions for structured data used throughout the layered audit system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Document is one immutable version of an audited text.
// A revision never mutates a Document; it produces a new one whose ParentID
// points at the version it was derived from.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename,omitempty"`
	Text      string    `json:"original_text"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session threads a user's progress through the pipeline.
type Session struct {
	ID          string    `json:"id"`
	CurrentStep StageID   `json:"current_step,omitempty"`
	DocumentID  string    `json:"document_id,omitempty"` // Pinned document, used when the route carries none
	UpdatedAt   time.Time `json:"updated_at"`
}

// Upload is a user-submitted file destined to become a new Document.
type Upload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// Empty reports whether the upload carries no content.
func (u *Upload) Empty() bool {
	return u == nil || len(u.Data) == 0
}
