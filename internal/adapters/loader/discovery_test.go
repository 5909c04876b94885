package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
)

func relPaths(files []entities.SourceFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestDiscoverer_CodeThenDocs(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"main.go", "README.md", "web/app.TSX", "pkg/util.py", ".git/hooks/pre.py",
		"docs/images/b.png", "docs/pdf/a.pdf", "docs/notes.txt", "docs/index.html",
		"logo.png",
	} {
		writeFile(t, filepath.Join(root, p), []byte("x"))
	}

	files, err := NewDiscoverer(Extensions{}).Discover(context.Background(), root, filepath.Join(root, "docs"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"docs/index.html", "main.go", "pkg/util.py", "web/app.TSX",
		"docs/images/b.png", "docs/pdf/a.pdf",
	}, relPaths(files))

	kinds := map[string]entities.SourceKind{}
	for _, f := range files {
		kinds[f.RelPath] = f.Kind
		assert.True(t, filepath.IsAbs(f.AbsPath))
	}
	assert.Equal(t, entities.KindCode, kinds["main.go"])
	assert.Equal(t, entities.KindImage, kinds["docs/images/b.png"])
	assert.Equal(t, entities.KindPDF, kinds["docs/pdf/a.pdf"])
}

func TestDiscoverer_MissingDocsDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), []byte("package main"))

	files, err := NewDiscoverer(Extensions{}).Discover(context.Background(), root, filepath.Join(root, "docs"))
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, relPaths(files))
}

func TestDiscoverer_MissingCorpusRoot(t *testing.T) {
	_, err := NewDiscoverer(Extensions{}).Discover(context.Background(), filepath.Join(t.TempDir(), "nope"), "")
	assert.Error(t, err)
}

func TestDiscoverer_CustomExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.kt"), []byte("x"))
	writeFile(t, filepath.Join(root, "b.go"), []byte("x"))

	d := NewDiscoverer(Extensions{Code: []string{"kt"}})
	files, err := d.Discover(context.Background(), root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.kt"}, relPaths(files))

	kind, ok := d.Kind("/x/Y.KT")
	assert.True(t, ok)
	assert.Equal(t, entities.KindCode, kind)
}
