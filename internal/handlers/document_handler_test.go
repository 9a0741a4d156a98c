package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/models"
)

// mockExtractor implements interfaces.DocumentExtractor for testing
type mockExtractor struct {
	extractFunc func(ctx context.Context, content []byte) (*models.DocumentExtraction, error)
}

func (m *mockExtractor) ExtractText(ctx context.Context, content []byte) (*models.DocumentExtraction, error) {
	if m.extractFunc != nil {
		return m.extractFunc(ctx, content)
	}
	return &models.DocumentExtraction{Text: "extracted", PageCount: 1, SizeBytes: int64(len(content))}, nil
}

func TestExtractHandler_RawBody(t *testing.T) {
	var gotContent []byte
	extractor := &mockExtractor{
		extractFunc: func(ctx context.Context, content []byte) (*models.DocumentExtraction, error) {
			gotContent = content
			return &models.DocumentExtraction{Text: "page one text", PageCount: 2, SizeBytes: int64(len(content))}, nil
		},
	}
	handler := NewDocumentHandler(extractor, arbor.NewLogger())

	req := httptest.NewRequest("POST", "/api/documents/extract", strings.NewReader("%PDF-1.4 fake content"))
	req.Header.Set("Content-Type", "application/pdf")
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if string(gotContent) != "%PDF-1.4 fake content" {
		t.Errorf("Extractor received wrong bytes: %q", gotContent)
	}

	var extraction models.DocumentExtraction
	if err := json.NewDecoder(rec.Body).Decode(&extraction); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if extraction.Text != "page one text" {
		t.Errorf("Expected extracted text, got %q", extraction.Text)
	}
	if extraction.PageCount != 2 {
		t.Errorf("Expected page count 2, got %d", extraction.PageCount)
	}
}

func TestExtractHandler_MultipartUpload(t *testing.T) {
	var gotContent []byte
	extractor := &mockExtractor{
		extractFunc: func(ctx context.Context, content []byte) (*models.DocumentExtraction, error) {
			gotContent = content
			return &models.DocumentExtraction{Text: "ok", PageCount: 1, SizeBytes: int64(len(content))}, nil
		},
	}
	handler := NewDocumentHandler(extractor, arbor.NewLogger())

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "application.pdf")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write([]byte("%PDF-1.4 multipart content"))
	writer.Close()

	req := httptest.NewRequest("POST", "/api/documents/extract", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if string(gotContent) != "%PDF-1.4 multipart content" {
		t.Errorf("Extractor received wrong bytes: %q", gotContent)
	}
}

func TestExtractHandler_EmptyBody(t *testing.T) {
	handler := NewDocumentHandler(&mockExtractor{}, arbor.NewLogger())

	req := httptest.NewRequest("POST", "/api/documents/extract", nil)
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestExtractHandler_ExtractionFailure(t *testing.T) {
	extractor := &mockExtractor{
		extractFunc: func(ctx context.Context, content []byte) (*models.DocumentExtraction, error) {
			return nil, errors.New("pdfcpu: invalid xref table")
		},
	}
	handler := NewDocumentHandler(extractor, arbor.NewLogger())

	req := httptest.NewRequest("POST", "/api/documents/extract", strings.NewReader("not a pdf"))
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got %d", rec.Code)
	}
}

func TestExtractHandler_NotConfigured(t *testing.T) {
	handler := NewDocumentHandler(nil, arbor.NewLogger())

	req := httptest.NewRequest("POST", "/api/documents/extract", strings.NewReader("%PDF"))
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Errorf("Expected status 501, got %d", rec.Code)
	}
}

func TestExtractHandler_MethodNotAllowed(t *testing.T) {
	handler := NewDocumentHandler(&mockExtractor{}, arbor.NewLogger())

	req := httptest.NewRequest("GET", "/api/documents/extract", nil)
	rec := httptest.NewRecorder()

	handler.ExtractHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}
