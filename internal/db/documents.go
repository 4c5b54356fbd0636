package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/textaudit/layered-audit/internal/types"
)

// InsertDocument stores a new document version.
func (db *DB) InsertDocument(ctx context.Context, doc *types.Document) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO documents (id, filename, text, parent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Filename, doc.Text, nullableID(doc.ParentID), doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID. Returns nil, nil when it does not exist.
func (db *DB) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	if !validID(id) {
		return nil, nil
	}
	var doc types.Document
	var parentID *string
	err := db.pool.QueryRow(ctx,
		`SELECT id::text, filename, text, parent_id::text, created_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.Filename, &doc.Text, &parentID, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if parentID != nil {
		doc.ParentID = *parentID
	}
	return &doc, nil
}

// validID reports whether id can be a row key. Other ids cannot exist in the tables.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
