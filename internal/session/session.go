// Package session tracks audit sessions: the stage a user last entered and the
// document pinned for routes that carry no document id.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/types"
)

// Repository persists session rows. *db.DB, MemoryRepository and RedisRepository implement it.
type Repository interface {
	InsertSession(ctx context.Context, s *types.Session) error
	// GetSession returns nil, nil when the session does not exist.
	GetSession(ctx context.Context, id string) (*types.Session, error)
	SetSessionStep(ctx context.Context, id string, step types.StageID) (found bool, err error)
	SetSessionDocument(ctx context.Context, id, documentID string) (found bool, err error)
}

// NotFoundError is returned when a session id is unknown.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// Service implements services.SessionService on top of a Repository.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a session Service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logging.OrNop(logger), now: time.Now}
}

// Create starts a session, optionally pinned to documentID.
func (s *Service) Create(ctx context.Context, documentID string) (*types.Session, error) {
	session := &types.Session{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		UpdatedAt:  s.now().UTC(),
	}
	if err := s.repo.InsertSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("session created", zap.String("session_id", session.ID), zap.String("document_id", documentID))
	return session, nil
}

// GetCurrent returns the session with the given id.
func (s *Service) GetCurrent(ctx context.Context, sessionID string) (*types.Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &NotFoundError{ID: sessionID}
	}
	return session, nil
}

// UpdateStep records the stage the user entered.
func (s *Service) UpdateStep(ctx context.Context, sessionID string, step types.StageID) error {
	found, err := s.repo.SetSessionStep(ctx, sessionID, step)
	if err != nil {
		return err
	}
	if !found {
		return &NotFoundError{ID: sessionID}
	}
	return nil
}

// PinDocument makes documentID the session's active document.
func (s *Service) PinDocument(ctx context.Context, sessionID, documentID string) error {
	found, err := s.repo.SetSessionDocument(ctx, sessionID, documentID)
	if err != nil {
		return err
	}
	if !found {
		return &NotFoundError{ID: sessionID}
	}
	s.logger.Debug("document pinned", zap.String("session_id", sessionID), zap.String("document_id", documentID))
	return nil
}
