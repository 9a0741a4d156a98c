package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// Extractor pulls text out of uploaded PDF documents using pdfcpu. The
// extracted text is returned to the caller so it can be submitted as the
// document content of a job.
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.DocumentExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "assero-pdf")
	os.MkdirAll(tempDir, 0o755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// ExtractText extracts text content from PDF bytes, page order preserved.
// pdfcpu works on files, so the upload is staged in a per-call temp
// directory that is removed before returning.
func (e *Extractor) ExtractText(ctx context.Context, content []byte) (*models.DocumentExtraction, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("document is empty")
	}

	workDir, err := os.MkdirTemp(e.tempDir, "extract-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputFile := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(inputFile, content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to stage PDF: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(inputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if pdfCtx.Encrypt != nil {
		return nil, fmt.Errorf("encrypted PDFs are not supported")
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(workDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(inputFile, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pageTexts := readPageContents(outDir)

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		pageText := strings.TrimSpace(pageTexts[pageNum])
		if pageText == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString(fmt.Sprintf("\n\n--- Page %d ---\n\n", pageNum))
		}
		builder.WriteString(pageText)
	}

	result := &models.DocumentExtraction{
		Text:      builder.String(),
		PageCount: pageCount,
		SizeBytes: int64(len(content)),
	}

	e.logger.Debug().
		Int("page_count", result.PageCount).
		Int64("size_bytes", result.SizeBytes).
		Int("text_len", len(result.Text)).
		Msg("PDF text extracted")

	return result, nil
}

// readPageContents maps extracted content files back to page numbers.
// pdfcpu names them <base>_Content_page_N.txt, with variations between
// versions, so only the trailing page_N is relied on.
func readPageContents(dir string) map[int]string {
	pageTexts := make(map[int]string)

	files, err := os.ReadDir(dir)
	if err != nil {
		return pageTexts
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		pageNum, ok := pageNumberFromName(file.Name())
		if !ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = string(content)
	}

	return pageTexts
}

// pageNumberFromName parses the page number out of an extracted content
// file name such as input_Content_page_3.txt.
func pageNumberFromName(name string) (int, bool) {
	idx := strings.LastIndex(name, "page_")
	if idx == -1 {
		return 0, false
	}
	numPart := name[idx+len("page_"):]
	numPart = strings.TrimSuffix(numPart, filepath.Ext(numPart))

	pageNum, err := strconv.Atoi(numPart)
	if err != nil || pageNum < 1 {
		return 0, false
	}
	return pageNum, true
}
