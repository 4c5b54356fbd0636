package server

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/pipeline/steps"
	"github.com/textaudit/layered-audit/internal/types"
)

// maxUploadBytes bounds uploaded document files.
const maxUploadBytes = 10 << 20

// DocumentCreateRequest is the JSON form of a document upload.
type DocumentCreateRequest struct {
	Text     string `json:"text" validate:"required"`
	Filename string `json:"filename,omitempty" validate:"max=255"`
	ParentID string `json:"parent_id,omitempty"`
}

// DocumentCreateResponse represents the response for creating a document
type DocumentCreateResponse struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
}

// StageResponse describes one stage of the pipeline graph.
type StageResponse struct {
	types.StageDef
	Dependencies []types.StageID `json:"dependencies,omitempty"`
	Optional     []types.StageID `json:"optional,omitempty"`
}

// handleListStages returns the stage catalogue in canonical order.
func (s *Server) handleListStages(w http.ResponseWriter, _ *http.Request) {
	out := make([]StageResponse, 0, len(steps.Catalogue))
	for _, def := range steps.Catalogue {
		out = append(out, StageResponse{StageDef: def.StageDef, Dependencies: def.Dependencies, Optional: def.Optional})
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// handleGetStageDef returns a stage and its neighbours.
func (s *Server) handleGetStageDef(w http.ResponseWriter, r *http.Request) {
	pos, err := steps.PositionOf(types.StageID(r.PathValue("stage")))
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, pos)
}

// handleUploadDocument stores a document from a multipart file or a JSON body.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	var (
		id       string
		parentID string
		err      error
	)
	if isMultipart(r) {
		var upload *types.Upload
		upload, parentID, err = readUpload(w, r)
		if err != nil {
			s.errorResponse(w, err)
			return
		}
		id, err = s.docs.Upload(r.Context(), upload, parentID)
	} else {
		var req DocumentCreateRequest
		if err := s.decodeJSON(r, &req); err != nil {
			s.errorResponse(w, err)
			return
		}
		parentID = req.ParentID
		id, err = s.docs.UploadText(r.Context(), req.Text, req.Filename, req.ParentID)
	}
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	s.logger.Info("document uploaded", zap.String("document_id", id), zap.String("parent_id", parentID))
	s.jsonResponse(w, http.StatusCreated, DocumentCreateResponse{ID: id, ParentID: parentID})
}

// handleGetDocument returns one document version.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.docs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, doc)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// readUpload reads the "file" part and the optional "parent_id" field of a
// multipart form.
func readUpload(w http.ResponseWriter, r *http.Request) (*types.Upload, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", &ErrValidation{Field: "file", Message: err.Error()}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", &ErrValidation{Field: "file", Message: "file is required"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, "", &ErrValidation{Field: "file", Message: "file is empty"}
	}
	return &types.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, r.FormValue("parent_id"), nil
}
