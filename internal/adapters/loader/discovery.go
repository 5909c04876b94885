package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// Default extension allow-lists.
var (
	DefaultCodeExtensions = []string{
		".py", ".js", ".ts", ".jsx", ".tsx", ".html", ".css", ".java",
		".c", ".cpp", ".h", ".hpp", ".go", ".rs", ".rb", ".php",
	}
	DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}
	DefaultPDFExtensions   = []string{".pdf"}
)

// Extensions configures which files the Discoverer picks up.
// Empty lists fall back to the defaults.
type Extensions struct {
	Code  []string
	Image []string
	PDF   []string
}

// Discoverer implements ports.SourceDiscoverer by walking the file system.
// Code files are collected from the whole corpus tree; images and PDFs only
// from the docs tree.
type Discoverer struct {
	kinds map[string]entities.SourceKind
}

var _ ports.SourceDiscoverer = (*Discoverer)(nil)

// NewDiscoverer creates a discoverer for the given extensions.
func NewDiscoverer(exts Extensions) *Discoverer {
	d := &Discoverer{kinds: make(map[string]entities.SourceKind)}
	d.register(orDefault(exts.Code, DefaultCodeExtensions), entities.KindCode)
	d.register(orDefault(exts.Image, DefaultImageExtensions), entities.KindImage)
	d.register(orDefault(exts.PDF, DefaultPDFExtensions), entities.KindPDF)
	return d
}

// Kind returns the source kind for path, if its extension is known.
func (d *Discoverer) Kind(path string) (entities.SourceKind, bool) {
	k, ok := d.kinds[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

// Extensions returns every extension the discoverer recognises.
func (d *Discoverer) Extensions() []string {
	exts := make([]string, 0, len(d.kinds))
	for ext := range d.kinds {
		exts = append(exts, ext)
	}
	return exts
}

// Discover lists code files under corpusRoot, then images and PDFs under
// docsRoot, each in lexical walk order. A missing docsRoot yields no docs.
func (d *Discoverer) Discover(ctx context.Context, corpusRoot, docsRoot string) ([]entities.SourceFile, error) {
	info, err := os.Stat(corpusRoot)
	if err != nil {
		return nil, fmt.Errorf("corpus root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", corpusRoot)
	}

	files, err := d.walk(ctx, corpusRoot, corpusRoot, func(k entities.SourceKind) bool {
		return k == entities.KindCode
	})
	if err != nil {
		return nil, err
	}

	if docsRoot == "" {
		return files, nil
	}
	if _, err := os.Stat(docsRoot); errors.Is(err, fs.ErrNotExist) {
		logger.Info("docs directory %s does not exist, skipping images and PDFs", docsRoot)
		return files, nil
	}

	docs, err := d.walk(ctx, corpusRoot, docsRoot, func(k entities.SourceKind) bool {
		return k == entities.KindImage || k == entities.KindPDF
	})
	if err != nil {
		return nil, err
	}
	return append(files, docs...), nil
}

func (d *Discoverer) walk(ctx context.Context, corpusRoot, root string, want func(entities.SourceKind) bool) ([]entities.SourceFile, error) {
	var files []entities.SourceFile
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			if path != root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		kind, ok := d.Kind(path)
		if !ok || !want(kind) {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(corpusRoot, path)
		if err != nil {
			rel = path
		}
		files = append(files, entities.SourceFile{
			AbsPath: abs,
			RelPath: filepath.ToSlash(rel),
			Kind:    kind,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func (d *Discoverer) register(exts []string, kind entities.SourceKind) {
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		d.kinds[ext] = kind
	}
}

func orDefault(exts, def []string) []string {
	if len(exts) == 0 {
		return def
	}
	return exts
}
