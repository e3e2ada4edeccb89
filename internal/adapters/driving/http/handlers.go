package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string           `json:"error" example:"project not analyzed"`
	Kind  domain.ErrorKind `json:"kind,omitempty" example:"not_analyzed"`
}

// IngestErrorResponse carries the partial result of a run that stopped early
// @Description Ingestion error with partial result
type IngestErrorResponse struct {
	ErrorResponse
	Result *domain.IngestResult `json:"result,omitempty"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse lists the health of each dependency
// @Description Readiness status
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// IngestRequest is the body of POST /projects/{id}/ingest
// @Description Ingestion request
type IngestRequest struct {
	RepoURL     string   `json:"repo_url" example:"https://github.com/acme/widgets"`
	Include     []string `json:"include,omitempty"`
	Exclude     []string `json:"exclude,omitempty"`
	MaxEntries  int      `json:"max_entries,omitempty" example:"100"`
	Update      bool     `json:"update"`
	Async       bool     `json:"async"`
	GitHubToken string   `json:"github_token,omitempty"`
}

// AskRequest is the body of POST /projects/{id}/ask
// @Description Question about a project
type AskRequest struct {
	Question string `json:"question" example:"Where is the HTTP router configured?"`
}

// DocumentListResponse is a page of documents
// @Description Documents of the active generation
type DocumentListResponse struct {
	Documents []*domain.Document `json:"documents"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the database, Redis and the queue
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.dependencies))}
	status := http.StatusOK
	for name, dep := range s.dependencies {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Project endpoints

// handleIngest godoc
// @Summary      Ingest a repository
// @Description  Runs an ingestion synchronously, or queues it when async is set
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string         true  "Project ID"
// @Param        request  body      IngestRequest  true  "Ingestion request"
// @Success      200      {object}  domain.IngestResult
// @Success      202      {object}  domain.Task
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse  "Ingestion already in progress"
// @Failure      429      {object}  IngestErrorResponse
// @Router       /projects/{id}/ingest [post]
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var body IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := domain.IngestRequest{
		ProjectID:   r.PathValue("id"),
		RepoURL:     strings.TrimSpace(body.RepoURL),
		Filter:      domain.FilterSpec{Include: body.Include, Exclude: body.Exclude},
		MaxEntries:  body.MaxEntries,
		Update:      body.Update,
		AccessToken: body.GitHubToken,
	}
	if req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, "repo_url is required")
		return
	}

	if body.Async {
		if body.GitHubToken != "" {
			writeError(w, http.StatusBadRequest, "github_token cannot be used with async ingestion")
			return
		}
		task, err := s.ingestion.Enqueue(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, task)
		return
	}

	result, err := s.ingestion.Ingest(r.Context(), req)
	if err != nil {
		if result != nil {
			status, resp := s.errorResponse(err)
			writeJSON(w, status, IngestErrorResponse{ErrorResponse: resp, Result: result})
			return
		}
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAsk godoc
// @Summary      Ask a question
// @Description  Answers from the project's most similar documents
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string      true  "Project ID"
// @Param        request  body      AskRequest  true  "Question"
// @Success      200      {object}  domain.Answer
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse  "Project not analyzed"
// @Failure      503      {object}  ErrorResponse  "AI services not configured"
// @Router       /projects/{id}/ask [post]
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var body AskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.answers.Ask(r.Context(), r.PathValue("id"), body.Question)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// handleProjectStatus godoc
// @Summary      Project status
// @Tags         Projects
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  domain.ProjectSummary
// @Router       /projects/{id} [get]
func (s *Server) handleProjectStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.documents.ProjectSummary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListDocuments godoc
// @Summary      List project documents
// @Tags         Projects
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true   "Project ID"
// @Param        limit   query     int     false  "Page size"  default(50)
// @Param        offset  query     int     false  "Offset"     default(0)
// @Success      200     {object}  DocumentListResponse
// @Router       /projects/{id}/documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 50)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}

	docs, err := s.documents.List(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Limit: limit, Offset: offset})
}

// handleDeleteProject godoc
// @Summary      Delete a project
// @Description  Removes every document, vector and the state of a project (admin only)
// @Tags         Projects
// @Security     BearerAuth
// @Param        id   path  string  true  "Project ID"
// @Success      204
// @Failure      409  {object}  ErrorResponse  "Ingestion in progress"
// @Router       /projects/{id} [delete]
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Task endpoints

// handleGetTask godoc
// @Summary      Ingestion task status
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.ingestion.TaskStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Document endpoints

// handleGetDocument godoc
// @Summary      Get a document
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  domain.Document
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument godoc
// @Summary      Delete a document
// @Description  Removes a document and its vector (admin only)
// @Tags         Documents
// @Security     BearerAuth
// @Param        id   path  string  true  "Document ID"
// @Success      204
// @Failure      404  {object}  ErrorResponse
// @Router       /documents/{id} [delete]
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

// errorResponse maps a service error onto a status code and body
func (s *Server) errorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not found"}
	case errors.Is(err, domain.ErrIngestionInProgress):
		return http.StatusConflict, ErrorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "AI services are not configured or unreachable"}
	}

	kind := domain.Classify(err)
	switch kind {
	case domain.ErrorKindRateLimited:
		return http.StatusTooManyRequests, ErrorResponse{Error: domain.UserMessage(kind), Kind: kind}
	case domain.ErrorKindForbidden:
		return http.StatusForbidden, ErrorResponse{Error: domain.UserMessage(kind), Kind: kind}
	case domain.ErrorKindNotAnalyzed, domain.ErrorKindDimensionMismatch:
		return http.StatusConflict, ErrorResponse{Error: domain.UserMessage(kind), Kind: kind}
	}

	s.logger.Error("request failed", "error", err)
	return http.StatusInternalServerError, ErrorResponse{Error: domain.UserMessage(domain.ErrorKindUnknown), Kind: domain.ErrorKindUnknown}
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status, resp := s.errorResponse(err)
	writeJSON(w, status, resp)
}

// queryInt reads a non-negative integer query parameter, writing a 400 on bad input
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
