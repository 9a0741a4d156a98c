package interfaces

import (
	"context"

	"github.com/ternarybob/assero/internal/models"
)

// PDFService renders markdown job results as PDF documents
type PDFService interface {
	// RenderMarkdown converts markdown content to a PDF byte slice.
	// The title is stored as document metadata.
	RenderMarkdown(markdown, title string) ([]byte, error)
}

// DocumentExtractor extracts text content from uploaded PDF documents
type DocumentExtractor interface {
	// ExtractText extracts text from PDF bytes, preserving page order.
	ExtractText(ctx context.Context, content []byte) (*models.DocumentExtraction, error)
}
