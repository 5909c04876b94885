package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	pages []string
	err   error
}

func (f fakePages) NumPage() int { return len(f.pages) }

func (f fakePages) PageText(n int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.pages[n-1], nil
}

func parserWith(src pageSource) *PDFParser {
	return &PDFParser{open: func([]byte) (pageSource, error) { return src, nil }}
}

func TestPDFParser_JoinsPagesInOrder(t *testing.T) {
	p := parserWith(fakePages{pages: []string{"Page one", "Page two\n", "Page three"}})

	text, err := p.Parse(context.Background(), nil, "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Page one\n\nPage two\n\nPage three", text)
}

func TestPDFParser_SkipsEmptyPages(t *testing.T) {
	p := parserWith(fakePages{pages: []string{"intro", "   ", "", "outro"}})

	text, err := p.Parse(context.Background(), nil, "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "intro\n\noutro", text)
}

func TestPDFParser_NoTextIsNotAnError(t *testing.T) {
	p := parserWith(fakePages{pages: []string{"", " \n"}})

	text, err := p.Parse(context.Background(), nil, "scan.pdf")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestPDFParser_PageErrorFailsFile(t *testing.T) {
	p := parserWith(fakePages{pages: []string{"x"}, err: errors.New("bad stream")})

	_, err := p.Parse(context.Background(), nil, "doc.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 1 of doc.pdf")
}

type panickingPages struct{}

func (panickingPages) NumPage() int { panic(errors.New("loading {2 0}: found {3 0}")) }

func (panickingPages) PageText(int) (string, error) { return "", nil }

func TestPDFParser_ReaderPanicBecomesError(t *testing.T) {
	text, err := parserWith(panickingPages{}).Parse(context.Background(), nil, "doc.pdf")
	require.Error(t, err)
	assert.Empty(t, text)
	assert.Contains(t, err.Error(), "reading doc.pdf")
	assert.Contains(t, err.Error(), "loading {2 0}")
}

func TestPDFParser_MisdirectedXref(t *testing.T) {
	data := misdirectXref(buildPDF("Hello"), 2, 3)

	var err error
	require.NotPanics(t, func() {
		_, err = NewPDFParser().Parse(context.Background(), data, "bad.pdf")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.pdf")
}

func TestPDFParser_InvalidData(t *testing.T) {
	_, err := NewPDFParser().Parse(context.Background(), []byte("not a pdf"), "bad.pdf")
	assert.Error(t, err)
}

func TestPDFParser_SupportedFormats(t *testing.T) {
	assert.Equal(t, []string{"pdf"}, NewPDFParser().SupportedFormats())
}

func TestPDFParser_RealDocument(t *testing.T) {
	data := buildPDF("Page one", "Page two", "Page three")

	text, err := NewPDFParser().Parse(context.Background(), data, "three.pdf")
	require.NoError(t, err)

	one := strings.Index(text, "Page one")
	two := strings.Index(text, "Page two")
	three := strings.Index(text, "Page three")
	require.True(t, one >= 0 && two >= 0 && three >= 0, "missing page text in %q", text)
	assert.Less(t, one, two)
	assert.Less(t, two, three)
	assert.Contains(t, text, PageSeparator)
}

// buildPDF writes a minimal PDF with one Helvetica text line per page.
func buildPDF(pages ...string) []byte {
	n := len(pages)
	fontObj := 3 + n
	var objects []string

	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 3+i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for i := range pages {
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontObj, fontObj+1+i))
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for _, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// misdirectXref points the xref entry of object obj at the offset of object target.
func misdirectXref(data []byte, obj, target int) []byte {
	s := string(data)
	start := strings.Index(s, "\nxref\n") + 1
	lines := strings.Split(s[start:], "\n")
	lines[2+obj] = lines[2+target]
	return []byte(s[:start] + strings.Join(lines, "\n"))
}
