package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// mockJobService implements interfaces.JobService for testing
type mockJobService struct {
	submitFunc func(ctx context.Context, req *models.SubmitRequest) (string, error)
	statusFunc func(jobID string) (*models.JobView, error)
	resultFunc func(jobID string) (*models.JobResult, error)
	cancelFunc func(jobID string) (bool, error)
	statsFunc  func() *models.JobStats
	listFunc   func(limit int, status models.JobStatus) []models.JobView
}

func (m *mockJobService) Submit(ctx context.Context, req *models.SubmitRequest) (string, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return "job-1", nil
}

func (m *mockJobService) Status(jobID string) (*models.JobView, error) {
	if m.statusFunc != nil {
		return m.statusFunc(jobID)
	}
	return nil, interfaces.ErrJobNotFound
}

func (m *mockJobService) Result(jobID string) (*models.JobResult, error) {
	if m.resultFunc != nil {
		return m.resultFunc(jobID)
	}
	return nil, interfaces.ErrJobNotFound
}

func (m *mockJobService) Cancel(jobID string) (bool, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(jobID)
	}
	return false, interfaces.ErrJobNotFound
}

func (m *mockJobService) Stats() *models.JobStats {
	if m.statsFunc != nil {
		return m.statsFunc()
	}
	return &models.JobStats{StatusCounts: map[models.JobStatus]int{}}
}

func (m *mockJobService) List(limit int, status models.JobStatus) []models.JobView {
	if m.listFunc != nil {
		return m.listFunc(limit, status)
	}
	return nil
}

func (m *mockJobService) Start(ctx context.Context) error { return nil }
func (m *mockJobService) Stop() error                     { return nil }

// mockPDFService implements interfaces.PDFService for testing
type mockPDFService struct {
	renderFunc func(markdown, title string) ([]byte, error)
}

func (m *mockPDFService) RenderMarkdown(markdown, title string) ([]byte, error) {
	if m.renderFunc != nil {
		return m.renderFunc(markdown, title)
	}
	return []byte("%PDF-1.4 test"), nil
}

func newTestJobHandler(svc interfaces.JobService, pdf interfaces.PDFService) *JobHandler {
	return NewJobHandler(svc, pdf, arbor.NewLogger())
}

func TestSubmitJobHandler_Accepted(t *testing.T) {
	var captured *models.SubmitRequest
	svc := &mockJobService{
		submitFunc: func(ctx context.Context, req *models.SubmitRequest) (string, error) {
			captured = req
			return "abc-123", nil
		},
	}
	handler := newTestJobHandler(svc, nil)

	body := `{"message": "find prior art for a drone battery swap system", "job_type": "prior_art"}`
	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.SubmitJobHandler(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rec.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["job_id"] != "abc-123" {
		t.Errorf("Expected job_id 'abc-123', got %q", response["job_id"])
	}
	if response["status"] != "pending" {
		t.Errorf("Expected status 'pending', got %q", response["status"])
	}

	if captured == nil {
		t.Fatal("Submit was not called")
	}
	if captured.JobType != "prior_art" {
		t.Errorf("Expected job_type 'prior_art', got %q", captured.JobType)
	}
}

func TestSubmitJobHandler_QueueFull(t *testing.T) {
	svc := &mockJobService{
		submitFunc: func(ctx context.Context, req *models.SubmitRequest) (string, error) {
			return "", interfaces.ErrQueueFull
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(`{"message": "hello"}`))
	rec := httptest.NewRecorder()

	handler.SubmitJobHandler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rec.Code)
	}
}

func TestSubmitJobHandler_InvalidBody(t *testing.T) {
	handler := newTestJobHandler(&mockJobService{}, nil)

	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()

	handler.SubmitJobHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestSubmitJobHandler_ValidationError(t *testing.T) {
	svc := &mockJobService{
		submitFunc: func(ctx context.Context, req *models.SubmitRequest) (string, error) {
			return "", req.Validate()
		},
	}
	handler := newTestJobHandler(svc, nil)

	// Empty message fails validation
	req := httptest.NewRequest("POST", "/api/jobs", strings.NewReader(`{"message": ""}`))
	rec := httptest.NewRecorder()

	handler.SubmitJobHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestSubmitJobHandler_MethodNotAllowed(t *testing.T) {
	handler := newTestJobHandler(&mockJobService{}, nil)

	req := httptest.NewRequest("GET", "/api/jobs", nil)
	rec := httptest.NewRecorder()

	handler.SubmitJobHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestGetJobHandler_Success(t *testing.T) {
	now := time.Now()
	svc := &mockJobService{
		statusFunc: func(jobID string) (*models.JobView, error) {
			return &models.JobView{
				JobID:     jobID,
				Status:    models.JobStatusProcessing,
				JobType:   "prior_art",
				Progress:  40,
				CreatedAt: now,
			}, nil
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("GET", "/api/jobs/abc-123", nil)
	rec := httptest.NewRecorder()

	handler.GetJobHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var view models.JobView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if view.JobID != "abc-123" {
		t.Errorf("Expected job_id 'abc-123', got %q", view.JobID)
	}
	if view.Status != models.JobStatusProcessing {
		t.Errorf("Expected status 'processing', got %q", view.Status)
	}
	if view.Progress != 40 {
		t.Errorf("Expected progress 40, got %d", view.Progress)
	}
}

func TestGetJobHandler_NotFound(t *testing.T) {
	handler := newTestJobHandler(&mockJobService{}, nil)

	req := httptest.NewRequest("GET", "/api/jobs/missing", nil)
	rec := httptest.NewRecorder()

	handler.GetJobHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestGetJobResultHandler_JSON(t *testing.T) {
	svc := &mockJobService{
		resultFunc: func(jobID string) (*models.JobResult, error) {
			return &models.JobResult{Response: "## Prior Art Search\n\nFindings.", Success: true}, nil
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("GET", "/api/jobs/abc-123/result", nil)
	rec := httptest.NewRecorder()

	handler.GetJobResultHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var result models.JobResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !result.Success {
		t.Error("Expected success true")
	}
	if !strings.Contains(result.Response, "Prior Art Search") {
		t.Errorf("Unexpected response content: %q", result.Response)
	}
}

func TestGetJobResultHandler_NotCompleted(t *testing.T) {
	svc := &mockJobService{
		resultFunc: func(jobID string) (*models.JobResult, error) {
			return nil, interfaces.ErrJobNotCompleted
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("GET", "/api/jobs/abc-123/result", nil)
	rec := httptest.NewRecorder()

	handler.GetJobResultHandler(rec, req)

	// Results only exist for completed jobs; anything else is a 404
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestGetJobResultHandler_NotFound(t *testing.T) {
	handler := newTestJobHandler(&mockJobService{}, nil)

	req := httptest.NewRequest("GET", "/api/jobs/missing/result", nil)
	rec := httptest.NewRecorder()

	handler.GetJobResultHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestGetJobResultHandler_HTML(t *testing.T) {
	svc := &mockJobService{
		resultFunc: func(jobID string) (*models.JobResult, error) {
			return &models.JobResult{Response: "# Findings\n\nClaim 1 is **broad**.", Success: true}, nil
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("GET", "/api/jobs/abc-123/result?format=html", nil)
	rec := httptest.NewRecorder()

	handler.GetJobResultHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected text/html content type, got %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Findings</h1>") {
		t.Errorf("Expected rendered heading, got: %s", body)
	}
	if !strings.Contains(body, "<strong>broad</strong>") {
		t.Errorf("Expected rendered bold text, got: %s", body)
	}
}

func TestGetJobResultHandler_PDF(t *testing.T) {
	svc := &mockJobService{
		resultFunc: func(jobID string) (*models.JobResult, error) {
			return &models.JobResult{Response: "# Findings", Success: true}, nil
		},
	}
	pdf := &mockPDFService{}
	handler := newTestJobHandler(svc, pdf)

	req := httptest.NewRequest("GET", "/api/jobs/abc-123/result?format=pdf", nil)
	rec := httptest.NewRecorder()

	handler.GetJobResultHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Expected application/pdf content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "abc-123.pdf") {
		t.Errorf("Expected attachment filename in disposition, got %q", cd)
	}
}

func TestGetJobResultHandler_PDFUnavailable(t *testing.T) {
	svc := &mockJobService{
		resultFunc: func(jobID string) (*models.JobResult, error) {
			return &models.JobResult{Response: "# Findings", Success: true}, nil
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("GET", "/api/jobs/abc-123/result?format=pdf", nil)
	rec := httptest.NewRecorder()

	handler.GetJobResultHandler(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected status 501, got %d", rec.Code)
	}
}

func TestGetJobResultHandler_UnsupportedFormat(t *testing.T) {
	svc := &mockJobService{
		resultFunc: func(jobID string) (*models.JobResult, error) {
			return &models.JobResult{Response: "x", Success: true}, nil
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("GET", "/api/jobs/abc-123/result?format=docx", nil)
	rec := httptest.NewRecorder()

	handler.GetJobResultHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestCancelJobHandler(t *testing.T) {
	tests := []struct {
		name          string
		cancelled     bool
		wantCancelled bool
	}{
		{"ActiveJobCancelled", true, true},
		{"TerminalJobNotCancelled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockJobService{
				cancelFunc: func(jobID string) (bool, error) {
					return tt.cancelled, nil
				},
			}
			handler := newTestJobHandler(svc, nil)

			req := httptest.NewRequest("POST", "/api/jobs/abc-123/cancel", nil)
			rec := httptest.NewRecorder()

			handler.CancelJobHandler(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rec.Code)
			}

			var response map[string]bool
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response["cancelled"] != tt.wantCancelled {
				t.Errorf("Expected cancelled=%v, got %v", tt.wantCancelled, response["cancelled"])
			}
		})
	}
}

func TestCancelJobHandler_NotFound(t *testing.T) {
	handler := newTestJobHandler(&mockJobService{}, nil)

	req := httptest.NewRequest("POST", "/api/jobs/missing/cancel", nil)
	rec := httptest.NewRecorder()

	handler.CancelJobHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestGetJobStatsHandler(t *testing.T) {
	svc := &mockJobService{
		statsFunc: func() *models.JobStats {
			return &models.JobStats{
				TotalJobs: 3,
				StatusCounts: map[models.JobStatus]int{
					models.JobStatusPending:   1,
					models.JobStatusCompleted: 2,
				},
				MaxJobs:       1000,
				JobTTLSeconds: 3600,
			}
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("GET", "/api/jobs/stats", nil)
	rec := httptest.NewRecorder()

	handler.GetJobStatsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var stats models.JobStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats.TotalJobs != 3 {
		t.Errorf("Expected total_jobs 3, got %d", stats.TotalJobs)
	}
	if stats.StatusCounts[models.JobStatusCompleted] != 2 {
		t.Errorf("Expected 2 completed, got %d", stats.StatusCounts[models.JobStatusCompleted])
	}
}

func TestListJobsHandler(t *testing.T) {
	var gotLimit int
	var gotStatus models.JobStatus
	svc := &mockJobService{
		listFunc: func(limit int, status models.JobStatus) []models.JobView {
			gotLimit = limit
			gotStatus = status
			return []models.JobView{{JobID: "a"}, {JobID: "b"}}
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("GET", "/api/jobs?limit=10&status=COMPLETED", nil)
	rec := httptest.NewRecorder()

	handler.ListJobsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if gotLimit != 10 {
		t.Errorf("Expected limit 10, got %d", gotLimit)
	}
	if gotStatus != models.JobStatusCompleted {
		t.Errorf("Expected status filter 'completed', got %q", gotStatus)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if int(response["count"].(float64)) != 2 {
		t.Errorf("Expected count 2, got %v", response["count"])
	}
}

func TestListJobsHandler_DefaultLimit(t *testing.T) {
	var gotLimit int
	svc := &mockJobService{
		listFunc: func(limit int, status models.JobStatus) []models.JobView {
			gotLimit = limit
			return nil
		},
	}
	handler := newTestJobHandler(svc, nil)

	req := httptest.NewRequest("GET", "/api/jobs", nil)
	rec := httptest.NewRecorder()

	handler.ListJobsHandler(rec, req)

	if gotLimit != 50 {
		t.Errorf("Expected default limit 50, got %d", gotLimit)
	}
}

func TestListJobsHandler_InvalidParameters(t *testing.T) {
	handler := newTestJobHandler(&mockJobService{}, nil)

	for _, url := range []string{
		"/api/jobs?limit=abc",
		"/api/jobs?limit=-1",
		"/api/jobs?status=bogus",
	} {
		req := httptest.NewRequest("GET", url, nil)
		rec := httptest.NewRecorder()

		handler.ListJobsHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", url, rec.Code)
		}
	}
}

func TestJobIDFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/jobs/abc-123", "abc-123"},
		{"/api/jobs/abc-123/result", "abc-123"},
		{"/api/jobs/abc-123/cancel", "abc-123"},
		{"/api/jobs", ""},
		{"/api/jobs/", ""},
	}

	for _, tt := range tests {
		if got := jobIDFromPath(tt.path); got != tt.want {
			t.Errorf("jobIDFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
