package revision

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
)

// defaultRevisionFilename names documents created from revised text.
const defaultRevisionFilename = "revision.txt"

// VersionInput is the content of a document version transition.
// Exactly one of File and Text must be non-empty.
type VersionInput struct {
	SessionID string
	ParentID  string
	File      *types.Upload
	Text      string
	Filename  string
}

// Transitioner persists new document versions and makes them active for a session.
type Transitioner struct {
	docs     services.DocumentService
	sessions services.SessionService
	logger   *zap.Logger
}

// NewTransitioner creates a Transitioner.
func NewTransitioner(docs services.DocumentService, sessions services.SessionService, logger *zap.Logger) *Transitioner {
	return &Transitioner{docs: docs, sessions: sessions, logger: logging.OrNop(logger)}
}

// Commit stores the input as a new document whose parent is in.ParentID, pins
// it on the session and returns its id. The parent document is never modified.
func (t *Transitioner) Commit(ctx context.Context, stage types.StageID, in VersionInput) (string, error) {
	hasFile := !in.File.Empty()
	hasText := strings.TrimSpace(in.Text) != ""
	if hasFile == hasText {
		return "", types.NewStageError(types.ErrNoRevisionContent, stage, "exactly one of file or text is required", nil)
	}

	var (
		id  string
		err error
	)
	if hasFile {
		id, err = t.docs.Upload(ctx, in.File, in.ParentID)
	} else {
		filename := in.Filename
		if filename == "" {
			filename = defaultRevisionFilename
		}
		id, err = t.docs.UploadText(ctx, in.Text, filename, in.ParentID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to store document version: %w", err)
	}

	if document.ValidID(in.SessionID) {
		if err := t.sessions.PinDocument(ctx, in.SessionID, id); err != nil {
			return "", fmt.Errorf("failed to pin document %s on session %s: %w", id, in.SessionID, err)
		}
	}

	t.logger.Info("document version created",
		zap.String("stage", string(stage)),
		zap.String("document_id", id),
		zap.String("parent_id", in.ParentID),
		zap.String("session_id", in.SessionID))
	return id, nil
}
