package server

import "net/http"

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Task API, scoped to the caller
	mux.Handle("GET /api/tasks", s.requireUser(s.handleListTasks))
	mux.Handle("POST /api/tasks", s.requireUser(s.handleCreateTask))
	mux.Handle("DELETE /api/tasks", s.requireUser(s.handleClearTasks))
	mux.Handle("PATCH /api/tasks/{id}", s.requireUser(s.handleUpdateTask))
	mux.Handle("DELETE /api/tasks/{id}", s.requireUser(s.handleDeleteTask))
	mux.Handle("POST /api/tasks/archive", s.requireUser(s.handleArchiveTasks))
	mux.Handle("POST /api/tasks/unarchive", s.requireUser(s.handleUnarchiveTasks))
	mux.Handle("POST /api/tasks/reorder", s.requireUser(s.handleReorderTasks))

	return s.requestID(s.corsMiddleware(mux))
}
