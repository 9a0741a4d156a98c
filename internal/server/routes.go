package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/assero/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (job events + log streaming)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Jobs. The collection path multiplexes submit and list; everything
	// under /api/jobs/{id} goes through the subpath router.
	mux.HandleFunc("/api/jobs/stats", s.app.JobHandler.GetJobStatsHandler)
	mux.Handle("/api/jobs", methodRouter{
		http.MethodPost: s.app.JobHandler.SubmitJobHandler,
		http.MethodGet:  s.app.JobHandler.ListJobsHandler,
	})
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	// Documents
	mux.HandleFunc("/api/documents/extract", s.app.DocumentHandler.ExtractHandler)

	// System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Unmatched API paths answer a JSON 404
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobRoutes routes /api/jobs/{id} and its subpaths: GET the snapshot,
// GET /result, POST /cancel.
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/cancel"):
		s.app.JobHandler.CancelJobHandler(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/result"):
		s.app.JobHandler.GetJobResultHandler(w, r)
	case r.Method == http.MethodGet:
		s.app.JobHandler.GetJobHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
