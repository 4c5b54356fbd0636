package server

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/pipeline"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/services"
	"github.com/textaudit/layered-audit/internal/types"
)

// defaultStageCacheSize bounds live stage instances when no size is configured.
const defaultStageCacheSize = 512

type stageKey struct {
	session string
	stage   types.StageID
}

// stageRegistry keeps one stage instance per (session, stage). Evicted
// instances are recreated on demand and resolve through the session's pinned
// document, so only in-memory analysis state is lost.
type stageRegistry struct {
	mu       sync.Mutex
	cache    *lru.Cache[stageKey, *pipeline.Stage]
	sessions services.SessionService
	deps     pipeline.Deps
	logger   *zap.Logger
}

func newStageRegistry(size int, sessions services.SessionService, deps pipeline.Deps, logger *zap.Logger) (*stageRegistry, error) {
	if size <= 0 {
		size = defaultStageCacheSize
	}
	cache, err := lru.New[stageKey, *pipeline.Stage](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage cache: %w", err)
	}
	return &stageRegistry{cache: cache, sessions: sessions, deps: deps, logger: logger}, nil
}

// get returns the stage instance for a session, creating it if needed.
// routeDocID only seeds new instances.
func (r *stageRegistry) get(ctx context.Context, sessionID string, id types.StageID, routeDocID string) (*pipeline.Stage, error) {
	def, err := steps.Lookup(id)
	if err != nil {
		return nil, err
	}
	key := stageKey{session: sessionID, stage: id}

	r.mu.Lock()
	st, ok := r.cache.Get(key)
	r.mu.Unlock()
	if ok {
		return st, nil
	}

	if _, err := r.sessions.GetCurrent(ctx, sessionID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.cache.Get(key); ok {
		return st, nil
	}
	st = pipeline.NewStage(def.StageDef, document.Ref{SessionID: sessionID, RouteID: routeDocID}, r.deps, r.completed(sessionID))
	r.cache.Add(key, st)
	return st, nil
}

// all returns every stage instance of a session in canonical order.
func (r *stageRegistry) all(ctx context.Context, sessionID, routeDocID string) ([]*pipeline.Stage, error) {
	order := steps.Order()
	out := make([]*pipeline.Stage, 0, len(order))
	for _, id := range order {
		st, err := r.get(ctx, sessionID, id, routeDocID)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// rebindSession points every live stage of a session except skip at documentID.
func (r *stageRegistry) rebindSession(sessionID string, skip types.StageID, documentID string) int {
	r.mu.Lock()
	var bound []*pipeline.Stage
	for _, key := range r.cache.Keys() {
		if key.session != sessionID || key.stage == skip {
			continue
		}
		if st, ok := r.cache.Peek(key); ok {
			bound = append(bound, st)
		}
	}
	r.mu.Unlock()

	for _, st := range bound {
		st.Rebind(documentID)
	}
	return len(bound)
}

func (r *stageRegistry) completed(sessionID string) pipeline.CompletionFunc {
	return func(stage types.StageID, analysis *pipeline.Analysis) {
		r.logger.Info("stage analysis completed",
			zap.String("session_id", sessionID),
			zap.String("stage", string(stage)),
			zap.String("risk_level", string(analysis.Result.RiskLevel)),
			zap.Int("issues", len(analysis.Issues)))
	}
}
