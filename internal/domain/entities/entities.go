// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import (
	"strings"
	"time"
)

// SourceKind is the closed set of file kinds the indexer understands.
type SourceKind string

const (
	KindCode  SourceKind = "code"
	KindImage SourceKind = "image"
	KindPDF   SourceKind = "pdf"
)

// Valid reports whether k is one of the known kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case KindCode, KindImage, KindPDF:
		return true
	}
	return false
}

// SourceFile is a discovered file. It is enumerated fresh on every build.
type SourceFile struct {
	AbsPath string
	RelPath string // relative to the corpus root, used for citations
	Kind    SourceKind
}

// ExtractedUnit is one logical text payload pulled out of a SourceFile.
type ExtractedUnit struct {
	Text    string
	Kind    SourceKind
	RelPath string
	AbsPath string
}

// IsEmpty reports whether the unit carries no text after trimming.
func (u ExtractedUnit) IsEmpty() bool {
	return strings.TrimSpace(u.Text) == ""
}

// ChunkMetadata travels with every chunk into the index.
type ChunkMetadata struct {
	Source   string     `json:"source"`
	FilePath string     `json:"file_path"`
	Kind     SourceKind `json:"type"`
}

// Chunk represents a bounded slice of an ExtractedUnit's text.
// Clean Architecture: Entity knows nothing about how it's stored or embedded.
type Chunk struct {
	ID       string
	Text     string
	Index    int // Position within its unit
	Metadata ChunkMetadata
}

// IndexRecord is the persisted form of a chunk.
type IndexRecord struct {
	ID        string
	Text      string
	Metadata  ChunkMetadata
	Embedding []float32 // populated by the index, not by callers
}

// QueryResult represents a retrieved record with its rank.
type QueryResult struct {
	Record IndexRecord
	Rank   int     // 1-based, nearest first
	Score  float64 // Similarity score, higher is nearer
}

// CollectionInfo describes a stored collection.
type CollectionInfo struct {
	Name           string
	EmbeddingModel string // identity of the embedder used to build it
	CreatedAt      time.Time
}

// Source is a cited piece of context returned with an answer.
type Source struct {
	File    string `json:"file"`
	Excerpt string `json:"content"`
}

// Answer is the LLM's answer with the sources it was grounded on.
type Answer struct {
	Text    string
	Sources []Source
}

// ImageAnswer is the result of asking a question about a single image.
type ImageAnswer struct {
	ExtractedText string
	Answer        string // empty when no question was asked
}
