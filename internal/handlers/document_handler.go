package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
)

// maxUploadBytes caps PDF uploads at 20MB
const maxUploadBytes = 20 << 20

// DocumentHandler handles document text extraction requests
type DocumentHandler struct {
	extractor interfaces.DocumentExtractor
	logger    arbor.ILogger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(extractor interfaces.DocumentExtractor, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		extractor: extractor,
		logger:    logger,
	}
}

// ExtractHandler extracts text from an uploaded PDF so the editor can
// populate document_content. Accepts either a multipart form with a "file"
// field or a raw application/pdf body.
// POST /api/documents/extract
func (h *DocumentHandler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if h.extractor == nil {
		WriteError(w, http.StatusNotImplemented, "Document extraction is not available")
		return
	}

	content, err := readUpload(w, r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(content) == 0 {
		WriteError(w, http.StatusBadRequest, "Empty document upload")
		return
	}

	extraction, err := h.extractor.ExtractText(r.Context(), content)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Int("size_bytes", len(content)).
			Msg("Document extraction failed")
		WriteError(w, http.StatusUnprocessableEntity, "Failed to extract text from document")
		return
	}

	h.logger.Info().
		Int("page_count", extraction.PageCount).
		Int64("size_bytes", extraction.SizeBytes).
		Msg("Document text extracted")

	WriteJSON(w, http.StatusOK, extraction)
}

// readUpload pulls the PDF bytes from a multipart "file" field or the raw
// request body, bounded by maxUploadBytes.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	return io.ReadAll(r.Body)
}
