package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/josephgoksu/dayplan/internal/task"
)

const maxBodyBytes = 1 << 20

// migrationHint is shown instead of a generic failure when ordering is unavailable.
const migrationHint = "task ordering is not available on this database yet; run `dayplan migrate` or add the position column"

// handleHealth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeAPIJSON(w, http.StatusOK, s.tasks.Health())
}

// handleListTasks
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		writeAPIError(w, http.StatusBadRequest, codeInvalidRequest, "date is required")
		return
	}
	includeArchived := false
	if v := q.Get("includeArchived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, codeInvalidRequest, "includeArchived must be a boolean")
			return
		}
		includeArchived = b
	}

	tasks, err := s.tasks.List(r.Context(), userFrom(r.Context()), date, includeArchived)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeAPIJSON(w, http.StatusOK, tasks)
}

// handleCreateTask
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req task.NewTask
	if !s.decode(w, r, &req) {
		return
	}

	created, err := s.tasks.Create(r.Context(), userFrom(r.Context()), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusCreated, created)
}

// handleUpdateTask
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req task.Patch
	if !s.decode(w, r, &req) {
		return
	}

	n, err := s.tasks.Update(r.Context(), userFrom(r.Context()), id, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if n == 0 {
		writeAPIError(w, http.StatusNotFound, codeNotFound, "task not found")
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// handleDeleteTask
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	n, err := s.tasks.Delete(r.Context(), userFrom(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if n == 0 {
		writeAPIError(w, http.StatusNotFound, codeNotFound, "task not found")
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// handleClearTasks
func (s *Server) handleClearTasks(w http.ResponseWriter, r *http.Request) {
	n, err := s.tasks.ClearAll(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// handleArchiveTasks
func (s *Server) handleArchiveTasks(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if !s.decode(w, r, &req) {
		return
	}

	n, err := s.tasks.Archive(r.Context(), userFrom(r.Context()), req.Date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]int64{"archived": n})
}

// handleUnarchiveTasks
func (s *Server) handleUnarchiveTasks(w http.ResponseWriter, r *http.Request) {
	var req UnarchiveRequest
	if !s.decode(w, r, &req) {
		return
	}

	n, err := s.tasks.Unarchive(r.Context(), userFrom(r.Context()), req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, map[string]int64{"unarchived": n})
}

// handleReorderTasks
func (s *Server) handleReorderTasks(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.tasks.Reorder(r.Context(), userFrom(r.Context()), req.Tasks)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, ReorderResponse{Requested: res.Requested, Updated: res.Updated})
}

// decode reads a JSON body into dst and validates struct tags.
// It writes a 400 and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return false
	}
	if err := task.Validator().Struct(dst); err != nil {
		writeAPIError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeAPIError(w, http.StatusBadRequest, codeInvalidRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

// writeError maps a service error to a status code. Backend detail goes to
// the log only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := requestIDFrom(r.Context())
	switch {
	case errors.Is(err, task.ErrInvalidTask), errors.Is(err, task.ErrNoFieldsToUpdate):
		writeAPIError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
	case errors.Is(err, task.ErrPositionUnsupported):
		s.logger.Warn("ordering unavailable", "request_id", reqID, "path", r.URL.Path)
		writeAPIJSON(w, http.StatusConflict, ErrorResponse{
			Error:     migrationHint,
			Code:      codePositionUnsupported,
			RequestID: reqID,
		})
	default:
		s.logger.Error("request failed",
			"request_id", reqID, "method", r.Method, "path", r.URL.Path, "error", err)
		writeAPIJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     fmt.Sprintf("operation failed (request %s)", reqID),
			Code:      codeInternal,
			RequestID: reqID,
		})
	}
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string) {
	writeAPIJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func writeAPIJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
