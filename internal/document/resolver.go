// Package document resolves the active document of a stage and stores document versions.
package document

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
)

// Ref carries every source a document id may come from.
type Ref struct {
	PropID    string // Explicitly supplied by the caller
	RouteID   string // Taken from the request path or query
	SessionID string // Used to look up the session's pinned document
}

// Resolver picks the authoritative document id and fetches its text.
type Resolver struct {
	docs     services.DocumentService
	sessions services.SessionService
	logger   *zap.Logger
}

// NewResolver creates a Resolver. sessions may be nil when no session fallback exists.
func NewResolver(docs services.DocumentService, sessions services.SessionService, logger *zap.Logger) *Resolver {
	return &Resolver{docs: docs, sessions: sessions, logger: logging.OrNop(logger)}
}

// ValidID reports whether id is usable. The literal markers "undefined" and
// "null" come from upstream serialization bugs and count as absent.
func ValidID(id string) bool {
	id = strings.TrimSpace(id)
	switch strings.ToLower(id) {
	case "", "undefined", "null":
		return false
	}
	return true
}

// ResolveID applies the precedence prop > route > session.
func (r *Resolver) ResolveID(ctx context.Context, stage types.StageID, ref Ref) (string, error) {
	if ValidID(ref.PropID) {
		return strings.TrimSpace(ref.PropID), nil
	}
	if ValidID(ref.RouteID) {
		return strings.TrimSpace(ref.RouteID), nil
	}
	if r.sessions != nil && ValidID(ref.SessionID) {
		session, err := r.sessions.GetCurrent(ctx, ref.SessionID)
		if err != nil {
			return "", types.NewStageError(types.ErrDocumentUnresolved, stage, "session lookup failed", err)
		}
		if session != nil && ValidID(session.DocumentID) {
			return strings.TrimSpace(session.DocumentID), nil
		}
	}
	return "", types.NewStageError(types.ErrDocumentUnresolved, stage, "no document id in props, route or session", nil)
}

// Resolve returns the resolved document with non-empty text.
// A fetch failure or empty text yields ErrDocumentTextMissing; it is never retried here.
func (r *Resolver) Resolve(ctx context.Context, stage types.StageID, ref Ref) (*types.Document, error) {
	id, err := r.ResolveID(ctx, stage, ref)
	if err != nil {
		return nil, err
	}

	doc, err := r.docs.Get(ctx, id)
	if err != nil {
		r.logger.Warn("document fetch failed", zap.String("stage", string(stage)), zap.String("document_id", id), zap.Error(err))
		return nil, types.NewStageError(types.ErrDocumentTextMissing, stage, "failed to fetch document "+id, err)
	}
	if doc == nil || strings.TrimSpace(doc.Text) == "" {
		return nil, types.NewStageError(types.ErrDocumentTextMissing, stage, "document "+id+" has no text", nil)
	}
	return doc, nil
}
