// Package api serves the task REST surface.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sandeepkv93/todoflow/internal/completion"
	"github.com/sandeepkv93/todoflow/internal/model"
	"github.com/sandeepkv93/todoflow/internal/storage"
	"github.com/sandeepkv93/todoflow/internal/tasks"
)

type Server struct {
	tasks  *tasks.Service
	logger *slog.Logger
	mux    *http.ServeMux
}

func NewServer(svc *tasks.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{tasks: svc, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Mux exposes the router so other components can mount routes next to
// the API.
func (s *Server) Mux() *http.ServeMux { return s.mux }

func (s *Server) Handler() http.Handler {
	return Chain(s.mux, WithRequestID, WithRecover(s.logger), WithAccessLog(s.logger))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/tasks", s.handleCreate)
	s.mux.HandleFunc("GET /api/tasks", s.handleList)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGet)
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdate)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/tasks/{id}/complete", s.handleToggle)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type listResponse struct {
	Tasks []model.Task `json:"tasks"`
	Total int          `json:"total"`
}

type toggleResponse struct {
	Task     model.Task  `json:"task"`
	NextTask *model.Task `json:"next_task,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	in, err := body.input()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.tasks.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.tasks.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Tasks: list, Total: len(list)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	in, err := updateFromJSON(raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := s.tasks.Update(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	res, err := s.tasks.Coordinator().ToggleCompletion(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Task: res.Task, NextTask: res.Clone})
}

func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return "", false
	}
	return id, true
}

// fail maps domain errors onto HTTP statuses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, completion.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	case model.IsValidation(err), errors.Is(err, storage.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, completion.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, "task is busy, retry later")
	default:
		s.logger.Error("request failed", "request_id", RequestIDFromContext(r.Context()), "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
