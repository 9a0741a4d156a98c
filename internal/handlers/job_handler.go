package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// JobHandler handles job submission and polling API requests
type JobHandler struct {
	jobService interfaces.JobService
	pdfService interfaces.PDFService
	markdown   goldmark.Markdown
	logger     arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobService interfaces.JobService, pdfService interfaces.PDFService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		pdfService: pdfService,
		markdown:   goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify)),
		logger:     logger,
	}
}

// jobIDFromPath extracts the job ID segment from /api/jobs/{id}[/suffix]
func jobIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

// SubmitJobHandler accepts a new orchestration request
// POST /api/jobs
func (h *JobHandler) SubmitJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	jobID, err := h.jobService.Submit(r.Context(), &req)
	if err != nil {
		if errors.Is(err, interfaces.ErrQueueFull) {
			h.logger.Warn().Msg("Job submission rejected: queue full")
			WriteError(w, http.StatusServiceUnavailable, "Job queue is full, try again later")
			return
		}
		h.logger.Warn().Err(err).Msg("Job submission rejected")
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("job_type", req.JobType).
		Msg("Job submitted")

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(models.JobStatusPending),
	})
}

// GetJobHandler returns a status snapshot for one job
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	view, err := h.jobService.Status(jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job status")
		WriteError(w, http.StatusInternalServerError, "Failed to get job status")
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// GetJobResultHandler returns the assembled result of a completed job.
// The optional format parameter renders the markdown response as html or
// pdf; the default is the JSON result payload.
// GET /api/jobs/{id}/result?format=html|pdf
func (h *JobHandler) GetJobResultHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	result, err := h.jobService.Result(jobID)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrJobNotFound):
			WriteError(w, http.StatusNotFound, "Job not found")
		case errors.Is(err, interfaces.ErrJobNotCompleted):
			WriteError(w, http.StatusNotFound, "Job is not completed")
		default:
			h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job result")
			WriteError(w, http.StatusInternalServerError, "Failed to get job result")
		}
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		WriteJSON(w, http.StatusOK, result)
	case "html":
		h.writeHTMLResult(w, jobID, result)
	case "pdf":
		h.writePDFResult(w, jobID, result)
	default:
		WriteError(w, http.StatusBadRequest, "Unsupported format: use json, html or pdf")
	}
}

// writeHTMLResult renders the markdown response as a standalone HTML page
func (h *JobHandler) writeHTMLResult(w http.ResponseWriter, jobID string, result *models.JobResult) {
	var body bytes.Buffer
	if err := h.markdown.Convert([]byte(result.Response), &body); err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to render result as HTML")
		WriteError(w, http.StatusInternalServerError, "Failed to render result")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n", jobID)
	w.Write(body.Bytes())
	fmt.Fprint(w, "\n</body>\n</html>\n")
}

// writePDFResult renders the markdown response as a PDF attachment
func (h *JobHandler) writePDFResult(w http.ResponseWriter, jobID string, result *models.JobResult) {
	if h.pdfService == nil {
		WriteError(w, http.StatusNotImplemented, "PDF rendering is not available")
		return
	}

	document, err := h.pdfService.RenderMarkdown(result.Response, jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to render result as PDF")
		WriteError(w, http.StatusInternalServerError, "Failed to render result")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(document)
}

// CancelJobHandler cancels a pending or processing job
// POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	jobID := jobIDFromPath(r.URL.Path)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	cancelled, err := h.jobService.Cancel(jobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to cancel job")
		WriteError(w, http.StatusInternalServerError, "Failed to cancel job")
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Bool("cancelled", cancelled).
		Msg("Job cancel requested")

	WriteJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// GetJobStatsHandler summarizes the job store
// GET /api/jobs/stats
func (h *JobHandler) GetJobStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.jobService.Stats())
}

// ListJobsHandler returns recent jobs, newest first
// GET /api/jobs?limit=50&status=completed
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			WriteError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	status := models.JobStatus(strings.ToLower(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid status filter: %s", r.URL.Query().Get("status")))
		return
	}

	jobs := h.jobService.List(limit, status)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
