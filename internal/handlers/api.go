package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
)

type APIHandler struct {
	llmService interfaces.LLMService
	logger     arbor.ILogger
}

// NewAPIHandler creates the system status handler. llmService may be nil
// when no provider is configured.
func NewAPIHandler(llmService interfaces.LLMService) *APIHandler {
	return &APIHandler{
		llmService: llmService,
		logger:     common.GetLogger(),
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status. The LLM provider is reported
// but never probed here: health must stay cheap enough to poll.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	health := map[string]interface{}{
		"status":           "ok",
		"recovered_panics": common.RecoveredPanics(),
	}
	if h.llmService != nil {
		health["llm_provider"] = string(h.llmService.GetProvider())
	} else {
		health["llm_provider"] = "none"
	}

	WriteJSON(w, http.StatusOK, health)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
