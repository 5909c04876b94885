// Package loader turns discovered files into text units.
// Clean Architecture: Adapters implementing ports.SourceDiscoverer and ports.ContentExtractor.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"

	"github.com/0xcro3dile/coderag-go/internal/adapters/ocr"
	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// TextLoader loads source code and other UTF-8 text files.
type TextLoader struct{}

// NewTextLoader creates a new text loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Extract reads the whole file as a single unit.
func (l *TextLoader) Extract(ctx context.Context, file entities.SourceFile) ([]entities.ExtractedUnit, error) {
	content, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ports.ErrNotText, file.RelPath)
	}
	return []entities.ExtractedUnit{unitFor(file, string(content))}, nil
}

// ImageLoader extracts text from images with OCR.
type ImageLoader struct {
	engine ports.OCREngine
}

var _ ports.ImageReader = (*ImageLoader)(nil)

// NewImageLoader creates an image loader backed by engine.
func NewImageLoader(engine ports.OCREngine) *ImageLoader {
	return &ImageLoader{engine: engine}
}

// Extract runs OCR on the image. An image without text yields no units.
func (l *ImageLoader) Extract(ctx context.Context, file entities.SourceFile) ([]entities.ExtractedUnit, error) {
	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, err
	}
	text, err := l.ReadImage(ctx, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn("no text extracted from %s", file.RelPath)
		return nil, nil
	}
	return []entities.ExtractedUnit{unitFor(file, text)}, nil
}

// ReadImage decodes PNG, JPEG, GIF or BMP bytes, preprocesses the picture and
// returns the recognised text.
func (l *ImageLoader) ReadImage(ctx context.Context, data []byte) (string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}
	logger.Debug("decoded %s image %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())

	text, err := l.engine.Recognize(ctx, ocr.Preprocess(img))
	if err != nil {
		return "", fmt.Errorf("recognizing text: %w", err)
	}
	return text, nil
}

// PDFLoader extracts the text layer of PDF documents.
type PDFLoader struct {
	parser ports.DocumentParser
}

// NewPDFLoader creates a PDF loader backed by parser.
func NewPDFLoader(parser ports.DocumentParser) *PDFLoader {
	return &PDFLoader{parser: parser}
}

// Extract returns the document's pages as one unit. A PDF with no text
// layer yields no units.
func (l *PDFLoader) Extract(ctx context.Context, file entities.SourceFile) ([]entities.ExtractedUnit, error) {
	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, err
	}
	text, err := l.parser.Parse(ctx, data, filepath.Base(file.AbsPath))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn("no text extracted from %s", file.RelPath)
		return nil, nil
	}
	return []entities.ExtractedUnit{unitFor(file, text)}, nil
}

// MultiLoader dispatches on the file's kind.
type MultiLoader struct {
	text  ports.ContentExtractor
	image ports.ContentExtractor
	pdf   ports.ContentExtractor
}

var _ ports.ContentExtractor = (*MultiLoader)(nil)

// NewMultiLoader creates a loader that handles every source kind.
func NewMultiLoader(text, image, pdf ports.ContentExtractor) *MultiLoader {
	return &MultiLoader{text: text, image: image, pdf: pdf}
}

// Extract dispatches to the loader for file.Kind.
func (m *MultiLoader) Extract(ctx context.Context, file entities.SourceFile) ([]entities.ExtractedUnit, error) {
	var ex ports.ContentExtractor
	switch file.Kind {
	case entities.KindCode:
		ex = m.text
	case entities.KindImage:
		ex = m.image
	case entities.KindPDF:
		ex = m.pdf
	}
	if ex == nil {
		return nil, fmt.Errorf("%w: %q", ports.ErrUnsupportedKind, file.Kind)
	}

	units, err := ex.Extract(ctx, file)
	if err != nil {
		return nil, err
	}
	logger.Debug("extracted %s - %d units", file.RelPath, len(units))
	return units, nil
}

func unitFor(file entities.SourceFile, text string) entities.ExtractedUnit {
	return entities.ExtractedUnit{
		Text:    text,
		Kind:    file.Kind,
		RelPath: file.RelPath,
		AbsPath: file.AbsPath,
	}
}
