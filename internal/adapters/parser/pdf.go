// Package parser provides document parsing adapters.
// Clean Architecture: Adapter implementing ports.DocumentParser.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n\n"

// PDFParser implements ports.DocumentParser with a pure-Go PDF reader.
// Dependency Inversion: Usecases depend on DocumentParser interface, not this.
type PDFParser struct {
	open func(data []byte) (pageSource, error)
}

var _ ports.DocumentParser = (*PDFParser)(nil)

// pageSource is the page-level view of a document that Parse needs.
type pageSource interface {
	NumPage() int
	PageText(n int) (string, error) // n is 1-based
}

// NewPDFParser creates a new PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{open: openPDF}
}

// Parse extracts text page by page. Pages without text are skipped and the
// rest are joined with a blank line, in page order. A document with no text
// at all returns "" and no error. Malformed documents that make the reader
// panic are reported as errors.
func (p *PDFParser) Parse(ctx context.Context, data []byte, filename string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("reading %s: %v", filename, r)
		}
	}()

	doc, err := p.open(data)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", filename, err)
	}

	var pages []string
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.PageText(i)
		if err != nil {
			return "", fmt.Errorf("reading page %d of %s: %w", i, filename, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, PageSeparator), nil
}

// SupportedFormats returns formats this parser handles.
func (p *PDFParser) SupportedFormats() []string {
	return []string{"pdf"}
}

type ledongthucDoc struct {
	r *pdf.Reader
}

func openPDF(data []byte) (pageSource, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return ledongthucDoc{r: r}, nil
}

func (d ledongthucDoc) NumPage() int {
	return d.r.NumPage()
}

func (d ledongthucDoc) PageText(n int) (string, error) {
	page := d.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
