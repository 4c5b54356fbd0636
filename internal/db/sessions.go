package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/textaudit/layered-audit/internal/types"
)

// InsertSession stores a new audit session.
func (db *DB) InsertSession(ctx context.Context, s *types.Session) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO audit_sessions (id, current_step, document_id, updated_at)
		 VALUES ($1, $2, $3, $4)`,
		s.ID, string(s.CurrentStep), nullableID(s.DocumentID), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns nil, nil when it does not exist.
func (db *DB) GetSession(ctx context.Context, id string) (*types.Session, error) {
	if !validID(id) {
		return nil, nil
	}
	var s types.Session
	var step string
	var documentID *string
	err := db.pool.QueryRow(ctx,
		`SELECT id::text, current_step, document_id::text, updated_at
		 FROM audit_sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &step, &documentID, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s.CurrentStep = types.StageID(step)
	if documentID != nil {
		s.DocumentID = *documentID
	}
	return &s, nil
}

// SetSessionStep records the stage a session entered. found is false when the session does not exist.
func (db *DB) SetSessionStep(ctx context.Context, id string, step types.StageID) (found bool, err error) {
	if !validID(id) {
		return false, nil
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE audit_sessions SET current_step = $1, updated_at = NOW() WHERE id = $2`,
		string(step), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update session step: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetSessionDocument pins a document on a session. found is false when the session does not exist.
func (db *DB) SetSessionDocument(ctx context.Context, id, documentID string) (found bool, err error) {
	if !validID(id) {
		return false, nil
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE audit_sessions SET document_id = $1, updated_at = NOW() WHERE id = $2`,
		documentID, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to pin session document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
