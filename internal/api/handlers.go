package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/model"
	"github.com/t77yq/macroflow/internal/queue"
	"github.com/t77yq/macroflow/internal/registry"
)

// scheduleTimeLayouts are the accepted runAt formats: RFC 3339, or a local
// timestamp without zone the way browser pickers produce them.
var scheduleTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// HealthCheck handles GET /api/health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Stats:  s.metrics.Snapshot(),
	})
}

// ListMacros handles GET /api/macros. Names come back in deterministic
// (sorted) order.
func (s *Server) ListMacros(w http.ResponseWriter, r *http.Request) {
	macros := s.registry.List()

	names := make([]MacroName, len(macros))
	for i, m := range macros {
		names[i] = MacroName{Name: m.Name}
	}

	s.jsonResponse(w, http.StatusOK, names)
}

// CreateMacro handles POST /api/macros.
func (s *Server) CreateMacro(w http.ResponseWriter, r *http.Request) {
	var req CreateMacroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	macro, err := s.registry.Create(r.Context(), req.Name, req.Description, req.Command)
	if err != nil {
		if errors.Is(err, registry.ErrValidation) {
			s.errorResponse(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "Failed to create macro", err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, macro)
}

// RunMacro handles POST /api/macros/{name}/run: resolves the macro and
// enqueues its command or bound task.
func (s *Server) RunMacro(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	macro, err := s.registry.Resolve(name)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, "Macro not found", err)
		return
	}

	req := &queue.ExecutionRequest{Command: macro.Command, Task: macro.Task}
	if _, err := s.queue.Submit(r.Context(), req); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to enqueue macro", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, AckResponse{
		Status:  "processing",
		Message: fmt.Sprintf("Macro %q is being executed.", name),
	})
}

// ExecuteNow handles POST /api/execute. The command is enqueued and the
// response returns immediately; execution continues in the background.
func (s *Server) ExecuteNow(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Command == "" {
		s.errorResponse(w, http.StatusBadRequest, "Command text is required", nil)
		return
	}

	if _, err := s.queue.Submit(r.Context(), &queue.ExecutionRequest{Command: req.Command}); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to enqueue command", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, AckResponse{
		Status:  "processing",
		Message: "Your macro is being executed.",
	})
}

// ScheduleCommand handles POST /api/schedule.
func (s *Server) ScheduleCommand(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Command == "" {
		s.errorResponse(w, http.StatusBadRequest, "Command text is required", nil)
		return
	}

	runAt, err := parseScheduleTime(req.RunAt)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "runAt must be an ISO-8601 timestamp", err)
		return
	}

	job := &model.ScheduledJob{Command: req.Command, RunAt: runAt}
	jobID, err := s.jobs.Save(r.Context(), job)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to schedule command", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, AckResponse{
		Status:  "scheduled",
		Message: fmt.Sprintf("Macro scheduled for %s", req.RunAt),
		JobID:   jobID,
	})
}

// ListHistory handles GET /api/history with optional offset/limit params.
func (s *Server) ListHistory(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 50)

	records, err := s.history.List(r.Context(), offset, limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to fetch execution history", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, records)
}

func parseScheduleTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("runAt is required")
	}
	for _, layout := range scheduleTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.logger.Error(message, zap.Error(err))
	}
	s.jsonResponse(w, status, ErrorResponse{Message: message})
}
