package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/pipeline"
	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/types"
)

// SessionCreateRequest represents the request to create a session
type SessionCreateRequest struct {
	DocumentID string `json:"document_id,omitempty" validate:"omitempty,max=128"`
}

// SessionResponse is a session with the position of its current stage.
type SessionResponse struct {
	*types.Session
	Position *steps.Position `json:"position,omitempty"`
}

// handleCreateSession starts a session, optionally pinned to an existing document.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionCreateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.errorResponse(w, err)
		return
	}
	if document.ValidID(req.DocumentID) {
		if _, err := s.docs.Get(r.Context(), req.DocumentID); err != nil {
			s.errorResponse(w, err)
			return
		}
	} else {
		req.DocumentID = ""
	}

	session, err := s.sessions.Create(r.Context(), req.DocumentID)
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, SessionResponse{Session: session})
}

// handleGetSession returns a session and where it is in the pipeline.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.GetCurrent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	resp := SessionResponse{Session: session}
	if session.CurrentStep != "" {
		if pos, err := steps.PositionOf(session.CurrentStep); err == nil {
			resp.Position = &pos
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleAuditStream runs every stage of the session in dependency order and
// streams progress as Server-Sent Events.
func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	stages, err := s.stages.all(r.Context(), sessionID, r.URL.Query().Get("document_id"))
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	stream, err := openAuditStream(w, sessionID)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	result, err := s.workflow.Run(r.Context(), stages, func(event pipeline.ProgressEvent) {
		if err := stream.Progress(event); err != nil {
			s.logger.Debug("failed to write progress event", zap.Error(err))
		}
	})
	if err != nil {
		if werr := stream.Fail(err); werr != nil {
			s.logger.Debug("failed to write error event", zap.Error(werr))
		}
		return
	}
	if err := stream.Finish(result); err != nil {
		s.logger.Debug("failed to write complete event", zap.Error(err))
	}
}
