// Package pdf renders markdown job results as PDF documents and extracts
// text from uploaded PDFs.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
)

const (
	pageLeft   = 12.0
	pageRight  = 198.0 // A4 width minus right margin
	tableWidth = 186.0
	baseFont   = "Arial"
	baseSize   = 10.0
)

// Service implements interfaces.PDFService on top of fpdf. Markdown is
// parsed with goldmark and rendered by walking the AST.
type Service struct {
	config *common.PDFConfig
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.PDFService = (*Service)(nil)

// NewService creates a new PDF render service
func NewService(config *common.PDFConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
	}
}

// RenderMarkdown converts markdown content to a PDF byte slice. The title
// goes into the document metadata only; headings are expected to come from
// the markdown itself.
func (s *Service) RenderMarkdown(markdown, title string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetMargins(pageLeft, 14, pageLeft)
	doc.SetAutoPageBreak(true, 18)
	doc.AliasNbPages("")

	footer := s.config.Footer
	doc.SetFooterFunc(func() {
		doc.SetY(-14)
		doc.SetFont(baseFont, "I", 8)
		doc.SetTextColor(120, 120, 120)
		doc.CellFormat(90, 6, footer, "", 0, "L", false, 0, "")
		doc.CellFormat(0, 6, fmt.Sprintf("Page %d of {nb}", doc.PageNo()), "", 0, "R", false, 0, "")
		doc.SetTextColor(0, 0, 0)
	})

	doc.AddPage()
	doc.SetFont(baseFont, "", baseSize)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
	)
	source := []byte(markdown)
	root := md.Parser().Parse(text.NewReader(source))

	r := &renderer{doc: doc, source: source}
	if err := r.render(root); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render markdown to PDF")
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write PDF output")
		return nil, fmt.Errorf("failed to write PDF output: %w", err)
	}

	s.logger.Debug().
		Int("markdown_len", len(markdown)).
		Int("pdf_size", buf.Len()).
		Str("title", title).
		Msg("PDF generated")

	return buf.Bytes(), nil
}

// listState tracks one level of list nesting. Drafted claims arrive as
// ordered lists, so the marker style and counter matter.
type listState struct {
	ordered bool
	index   int
}

type renderer struct {
	doc    *fpdf.Fpdf
	source []byte
	bold   bool
	italic bool
	lists  []*listState
}

func (r *renderer) render(root ast.Node) error {
	return ast.Walk(root, r.walk)
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		if !entering && len(r.lists) == 0 {
			r.doc.Ln(6)
		}
	case ast.KindText:
		if entering {
			t := n.(*ast.Text)
			r.doc.Write(5, string(t.Segment.Value(r.source)))
			if t.SoftLineBreak() || t.HardLineBreak() {
				r.doc.Write(5, " ")
			}
		}
	case ast.KindEmphasis:
		r.handleEmphasis(n.(*ast.Emphasis), entering)
	case ast.KindLink:
		if entering {
			r.writeLink(string(n.Text(r.source)), string(n.(*ast.Link).Destination))
			return ast.WalkSkipChildren, nil
		}
	case ast.KindAutoLink:
		if entering {
			target := string(n.(*ast.AutoLink).URL(r.source))
			r.writeLink(target, target)
		}
	case ast.KindCodeSpan:
		return r.handleCodeSpan(n, entering), nil
	case ast.KindFencedCodeBlock:
		if entering {
			r.renderCodeBlock(n.(*ast.FencedCodeBlock).Lines())
			return ast.WalkSkipChildren, nil
		}
	case ast.KindCodeBlock:
		if entering {
			r.renderCodeBlock(n.(*ast.CodeBlock).Lines())
			return ast.WalkSkipChildren, nil
		}
	case ast.KindList:
		r.handleList(n.(*ast.List), entering)
	case ast.KindListItem:
		r.handleListItem(entering)
	case ast.KindBlockquote:
		r.handleBlockquote(entering)
	case ast.KindThematicBreak:
		if entering {
			r.doc.Ln(4)
			r.doc.Line(pageLeft, r.doc.GetY(), pageRight, r.doc.GetY())
			r.doc.Ln(4)
		}
	case extast.KindTable:
		if entering {
			r.renderTable(collectTableRows(n, r.source))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *renderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.doc.SetFont(baseFont, style, baseSize)
}

func (r *renderer) handleHeading(n *ast.Heading, entering bool) {
	if entering {
		r.doc.Ln(5)
		size := 10.5
		switch n.Level {
		case 1:
			size = 15
		case 2:
			size = 13
		case 3:
			size = 11.5
		}
		r.doc.SetFont(baseFont, "B", size)
	} else {
		r.doc.Ln(8)
		r.updateFont()
	}
}

func (r *renderer) handleEmphasis(n *ast.Emphasis, entering bool) {
	if n.Level == 2 {
		r.bold = entering
	} else {
		r.italic = entering
	}
	r.updateFont()
}

func (r *renderer) writeLink(label, target string) {
	if label == "" {
		label = target
	}
	r.doc.SetTextColor(0, 0, 180)
	r.doc.WriteLinkString(5, label, target)
	r.doc.SetTextColor(0, 0, 0)
}

func (r *renderer) handleCodeSpan(n ast.Node, entering bool) ast.WalkStatus {
	if entering {
		r.doc.SetFont("Courier", "", baseSize)
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				r.doc.Write(5, string(t.Segment.Value(r.source)))
			}
		}
		return ast.WalkSkipChildren
	}
	r.updateFont()
	return ast.WalkContinue
}

func (r *renderer) renderCodeBlock(lines *text.Segments) {
	r.doc.Ln(3)
	r.doc.SetFont("Courier", "", 8.5)
	r.doc.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		r.doc.MultiCell(0, 4.5, string(segment.Value(r.source)), "", "L", true)
	}
	r.doc.SetFillColor(255, 255, 255)
	r.updateFont()
	r.doc.Ln(3)
}

func (r *renderer) handleList(n *ast.List, entering bool) {
	if entering {
		state := &listState{ordered: n.IsOrdered()}
		if state.ordered {
			state.index = n.Start - 1
		}
		r.lists = append(r.lists, state)
	} else {
		r.lists = r.lists[:len(r.lists)-1]
		if len(r.lists) == 0 {
			r.doc.Ln(6)
		}
	}
}

func (r *renderer) handleListItem(entering bool) {
	if !entering {
		return
	}
	depth := len(r.lists)
	state := r.lists[depth-1]

	r.doc.Ln(5)
	r.doc.SetX(pageLeft + float64(depth)*5)
	if state.ordered {
		state.index++
		r.doc.Write(5, fmt.Sprintf("%d. ", state.index))
	} else {
		r.doc.Write(5, "- ")
	}
}

func (r *renderer) handleBlockquote(entering bool) {
	if entering {
		r.doc.Ln(2)
		r.doc.SetLeftMargin(pageLeft + 6)
		r.doc.SetX(pageLeft + 6)
		r.doc.SetTextColor(90, 90, 90)
	} else {
		r.doc.SetLeftMargin(pageLeft)
		r.doc.SetTextColor(0, 0, 0)
		r.doc.Ln(2)
	}
}

// collectTableRows flattens a goldmark table node into rows of cell text.
// The header row comes first.
func collectTableRows(table ast.Node, source []byte) [][]string {
	var rows [][]string

	var visit func(node ast.Node)
	visit = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *extast.TableHeader:
				visit(c)
			case *extast.TableRow:
				var row []string
				for cell := c.FirstChild(); cell != nil; cell = cell.NextSibling() {
					row = append(row, string(cell.Text(source)))
				}
				rows = append(rows, row)
			}
		}
	}
	visit(table)

	return rows
}

func (r *renderer) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	cols := len(rows[0])
	widths := r.columnWidths(rows, cols)

	r.doc.Ln(3)
	for i, row := range rows {
		if i == 0 {
			r.doc.SetFont(baseFont, "B", 8)
			r.doc.SetFillColor(232, 232, 232)
		} else {
			r.doc.SetFont(baseFont, "", 8)
			r.doc.SetFillColor(255, 255, 255)
		}
		for j := 0; j < cols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			r.doc.CellFormat(widths[j], 7, r.fitCell(cell, widths[j]-2), "1", 0, "L", i == 0, 0, "")
		}
		r.doc.Ln(-1)
	}
	r.doc.Ln(3)
	r.updateFont()
}

// columnWidths sizes columns by measured content width, scaled to fill the
// printable table width.
func (r *renderer) columnWidths(rows [][]string, cols int) []float64 {
	r.doc.SetFont(baseFont, "", 8)

	widths := make([]float64, cols)
	for _, row := range rows {
		for j := 0; j < cols && j < len(row); j++ {
			if w := r.doc.GetStringWidth(row[j]) + 4; w > widths[j] {
				widths[j] = w
			}
		}
	}

	total := 0.0
	for j := range widths {
		if widths[j] < 16 {
			widths[j] = 16
		}
		total += widths[j]
	}

	scale := tableWidth / total
	for j := range widths {
		widths[j] *= scale
	}
	return widths
}

// fitCell truncates cell text with an ellipsis to fit a single line.
func (r *renderer) fitCell(s string, width float64) string {
	if r.doc.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 1 && r.doc.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
