package server

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/pipeline"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/types"
)

// RevisionRequestBody opens a revision for the selected issues.
type RevisionRequestBody struct {
	Mode types.RevisionMode `json:"mode" validate:"required,oneof=prompt apply"`
}

// RevisionConfirmBody confirms a revision request.
type RevisionConfirmBody struct {
	Notes string `json:"notes,omitempty" validate:"max=4000"`
}

// VersionCommitBody commits revised text as a new document version. With an
// empty body the stage's pending edit is committed.
type VersionCommitBody struct {
	Text     string `json:"text,omitempty"`
	Filename string `json:"filename,omitempty" validate:"max=255"`
}

// NavigationResponse is the result of entering or skipping a stage.
type NavigationResponse struct {
	Position steps.Position `json:"position"`
	Stage    *pipeline.View `json:"stage,omitempty"`
}

// VersionCommitResponse represents the response for committing a version.
type VersionCommitResponse struct {
	DocumentID string        `json:"document_id"`
	Rebound    int           `json:"rebound_stages"`
	Stage      pipeline.View `json:"stage"`
}

// stage looks up the stage instance addressed by the request path.
func (s *Server) stage(w http.ResponseWriter, r *http.Request) (*pipeline.Stage, bool) {
	st, err := s.stages.get(r.Context(), r.PathValue("id"), types.StageID(r.PathValue("stage")), r.URL.Query().Get("document_id"))
	if err != nil {
		s.errorResponse(w, err)
		return nil, false
	}
	return st, true
}

// stageEvent applies one event to the addressed stage and replies with its snapshot.
func (s *Server) stageEvent(w http.ResponseWriter, r *http.Request, event func(st *pipeline.Stage) error) {
	st, ok := s.stage(w, r)
	if !ok {
		return
	}
	if err := event(st); err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st.Snapshot())
}

// handleStageSnapshot returns the current view of a stage instance.
func (s *Server) handleStageSnapshot(w http.ResponseWriter, r *http.Request) {
	s.stageEvent(w, r, func(*pipeline.Stage) error { return nil })
}

// handleEnterStage records the session's progress and resolves the stage's document.
// A resolution failure is reported in the stage snapshot, not as an error.
func (s *Server) handleEnterStage(w http.ResponseWriter, r *http.Request) {
	st, ok := s.stage(w, r)
	if !ok {
		return
	}
	pos, err := s.navigator.Enter(r.Context(), r.PathValue("id"), st.Def().ID)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	if _, err := st.Resolve(r.Context()); err != nil {
		s.logger.Debug("stage entered without a document", zap.String("stage", string(st.Def().ID)), zap.Error(err))
	}
	view := st.Snapshot()
	s.jsonResponse(w, http.StatusOK, NavigationResponse{Position: pos, Stage: &view})
}

// handleSkipStage moves to the next stage without analysing the current one.
func (s *Server) handleSkipStage(w http.ResponseWriter, r *http.Request) {
	id := types.StageID(r.PathValue("stage"))
	ref := document.Ref{SessionID: r.PathValue("id"), RouteID: r.URL.Query().Get("document_id")}
	pos, err := s.navigator.Skip(r.Context(), id, ref)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, NavigationResponse{Position: pos})
}

// handleAnalyze triggers analysis of the stage's current document.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.stageEvent(w, r, func(st *pipeline.Stage) error {
		_, err := st.Run(r.Context())
		return err
	})
}

// handleRetry re-runs a failed stage.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.stageEvent(w, r, func(st *pipeline.Stage) error {
		_, err := st.Retry(r.Context())
		return err
	})
}

// handleToggleIssue flips selection of the issue at the path index.
func (s *Server) handleToggleIssue(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.errorResponse(w, &ErrValidation{Field: "index", Message: "must be an integer"})
		return
	}
	s.stageEvent(w, r, func(st *pipeline.Stage) error {
		return st.Toggle(index)
	})
}

// handleLoadSuggestion loads a suggestion for the first selected issue.
func (s *Server) handleLoadSuggestion(w http.ResponseWriter, r *http.Request) {
	s.stageEvent(w, r, func(st *pipeline.Stage) error {
		_, err := st.LoadSuggestion(r.Context())
		return err
	})
}

// handleDismissSuggestion clears the loaded suggestion.
func (s *Server) handleDismissSuggestion(w http.ResponseWriter, r *http.Request) {
	s.stageEvent(w, r, func(st *pipeline.Stage) error {
		st.DismissSuggestion()
		return nil
	})
}

// handleRequestRevision opens a revision request in the given mode.
func (s *Server) handleRequestRevision(w http.ResponseWriter, r *http.Request) {
	var body RevisionRequestBody
	if err := s.decodeJSON(r, &body); err != nil {
		s.errorResponse(w, err)
		return
	}
	s.stageEvent(w, r, func(st *pipeline.Stage) error {
		return st.RequestRevision(body.Mode)
	})
}

// handleConfirmRevision confirms the pending request and waits for the revision.
func (s *Server) handleConfirmRevision(w http.ResponseWriter, r *http.Request) {
	var body RevisionConfirmBody
	if err := s.decodeJSON(r, &body); err != nil {
		s.errorResponse(w, err)
		return
	}
	s.stageEvent(w, r, func(st *pipeline.Stage) error {
		return st.ConfirmRevision(r.Context(), body.Notes)
	})
}

// handleAcknowledgeRevision acknowledges fabrication risk.
func (s *Server) handleAcknowledgeRevision(w http.ResponseWriter, r *http.Request) {
	s.stageEvent(w, r, func(st *pipeline.Stage) error {
		return st.AcknowledgeRevision(r.Context())
	})
}

// handleAcceptRevision moves the apply result into the pending edit.
func (s *Server) handleAcceptRevision(w http.ResponseWriter, r *http.Request) {
	s.stageEvent(w, r, (*pipeline.Stage).AcceptRevision)
}

// handleRegenerateRevision discards the apply result and reopens the request.
func (s *Server) handleRegenerateRevision(w http.ResponseWriter, r *http.Request) {
	s.stageEvent(w, r, (*pipeline.Stage).RegenerateRevision)
}

// handleCancelRevision abandons the current revision.
func (s *Server) handleCancelRevision(w http.ResponseWriter, r *http.Request) {
	s.stageEvent(w, r, (*pipeline.Stage).CancelRevision)
}

// handleCommitVersion stores an uploaded file, posted text or the pending edit
// as a new document version and rebinds every stage of the session to it.
func (s *Server) handleCommitVersion(w http.ResponseWriter, r *http.Request) {
	st, ok := s.stage(w, r)
	if !ok {
		return
	}

	var (
		upload *types.Upload
		body   VersionCommitBody
		err    error
	)
	if isMultipart(r) {
		upload, _, err = readUpload(w, r)
	} else {
		err = s.decodeJSON(r, &body)
	}
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	id, err := st.CommitVersion(r.Context(), upload, body.Text, body.Filename)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	sessionID := r.PathValue("id")
	rebound := s.stages.rebindSession(sessionID, st.Def().ID, id)
	s.logger.Info("session rebound to new document version",
		zap.String("session_id", sessionID),
		zap.String("document_id", id),
		zap.Int("stages", rebound))

	s.jsonResponse(w, http.StatusCreated, VersionCommitResponse{DocumentID: id, Rebound: rebound, Stage: st.Snapshot()})
}
