package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/poiesic/knowledgebot/core"
)

const maxBodyBytes = 1 << 20

func (s *Server) processFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	pipeline, ok := s.prepare(w, r, &req)
	if !ok {
		return
	}
	s.logger.Info("process file", "filename", req.Filename, "source_id", req.SourceID)
	err := pipeline.ProcessFile(r.Context(), req.WorkspaceID, req.SourceID, req.FilePath, req.Filename)
	s.finish(w, err, core.StatusCompleted, req.SourceID)
}

func (s *Server) processQA(w http.ResponseWriter, r *http.Request) {
	var req qaRequest
	pipeline, ok := s.prepare(w, r, &req)
	if !ok {
		return
	}
	s.logger.Info("process qa", "source_id", req.SourceID)
	err := pipeline.ProcessQA(r.Context(), req.WorkspaceID, req.SourceID, req.QA.Question, req.QA.Answer)
	s.finish(w, err, core.StatusCompleted, req.SourceID)
}

func (s *Server) processArticle(w http.ResponseWriter, r *http.Request) {
	var req articleRequest
	pipeline, ok := s.prepare(w, r, &req)
	if !ok {
		return
	}
	s.logger.Info("process article", "source_id", req.SourceID)
	err := pipeline.ProcessArticle(r.Context(), req.WorkspaceID, req.SourceID, req.Article.Title, req.Article.Content)
	s.finish(w, err, core.StatusCompleted, req.SourceID)
}

func (s *Server) deleteEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	pipeline, ok := s.prepare(w, r, &req)
	if !ok {
		return
	}
	s.logger.Info("delete embeddings", "collection", req.CollectionName, "source_id", req.SourceID)
	_, err := pipeline.DeleteEmbeddings(r.Context(), req.CollectionName, req.SourceID)
	s.finish(w, err, core.StatusDeleted, req.SourceID)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	pipeline, ok := s.prepare(w, r, &req)
	if !ok {
		return
	}
	result := pipeline.Query(r.Context(), req.WorkspaceID, req.Question)
	if result.Sources == nil {
		result.Sources = []core.QuerySource{}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	if _, err := s.resolve(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: unavailableDetail(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// prepare resolves the pipeline, then decodes and validates the body into
// req. It writes the error response itself and reports false on failure.
func (s *Server) prepare(w http.ResponseWriter, r *http.Request, req any) (Pipeline, bool) {
	pipeline, err := s.resolve()
	if err != nil {
		s.logger.Warn("pipeline unavailable", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: unavailableDetail(err)})
		return nil, false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid request body: " + err.Error()})
		return nil, false
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: validationDetail(err)})
		return nil, false
	}
	return pipeline, true
}

func (s *Server) finish(w http.ResponseWriter, err error, status core.SourceStatus, sourceID string) {
	if err != nil {
		s.logger.Error("pipeline task failed", "source_id", sourceID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: status, SourceID: sourceID})
}

// unavailableDetail keeps only the top-level message so startup causes do
// not leak to callers.
func unavailableDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i > 0 {
		return msg[:i]
	}
	return msg
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
