package steps

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
)

// progressTimeout bounds the fire-and-forget progress marker update.
const progressTimeout = 5 * time.Second

// Position is a stage and its fixed neighbours.
type Position struct {
	Current  types.StageDef  `json:"current"`
	Previous *types.StageDef `json:"previous,omitempty"`
	Next     *types.StageDef `json:"next,omitempty"`
}

// Navigator moves a session between stages and records its progress marker.
type Navigator struct {
	sessions services.SessionService
	resolver *document.Resolver
	logger   *zap.Logger
	updates  sync.WaitGroup
}

// NewNavigator creates a Navigator.
func NewNavigator(sessions services.SessionService, resolver *document.Resolver, logger *zap.Logger) *Navigator {
	return &Navigator{sessions: sessions, resolver: resolver, logger: logging.OrNop(logger)}
}

// PositionOf returns the stage and its neighbours without side effects.
func PositionOf(id types.StageID) (Position, error) {
	def, err := Lookup(id)
	if err != nil {
		return Position{}, err
	}
	prev, next, err := Neighbors(id)
	if err != nil {
		return Position{}, err
	}
	return Position{Current: def.StageDef, Previous: prev, Next: next}, nil
}

// Enter records that the session entered a stage. A failed progress update is
// logged and never returned.
func (n *Navigator) Enter(ctx context.Context, sessionID string, id types.StageID) (Position, error) {
	pos, err := PositionOf(id)
	if err != nil {
		return Position{}, err
	}
	n.markProgress(ctx, sessionID, id)
	return pos, nil
}

// Skip moves past the current stage without analysing it. The stage's document
// must still resolve; skipping from the last stage is an invalid transition.
func (n *Navigator) Skip(ctx context.Context, id types.StageID, ref document.Ref) (Position, error) {
	_, next, err := Neighbors(id)
	if err != nil {
		return Position{}, err
	}
	if _, err := n.resolver.Resolve(ctx, id, ref); err != nil {
		return Position{}, err
	}
	if next == nil {
		return Position{}, types.NewStageError(types.ErrInvalidTransition, id, "last stage has no successor", nil)
	}
	return n.Enter(ctx, ref.SessionID, next.ID)
}

// markProgress updates the session's progress marker in the background. The
// caller's cancellation does not abort the update; progressTimeout bounds it.
func (n *Navigator) markProgress(ctx context.Context, sessionID string, id types.StageID) {
	if !document.ValidID(sessionID) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	n.updates.Add(1)
	go func() {
		defer n.updates.Done()
		ctx, cancel := context.WithTimeout(ctx, progressTimeout)
		defer cancel()
		if err := n.sessions.UpdateStep(ctx, sessionID, id); err != nil {
			n.logger.Warn("failed to update session step",
				zap.String("session_id", sessionID),
				zap.String("stage", string(id)),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every progress update started so far has finished.
func (n *Navigator) Wait() {
	n.updates.Wait()
}
