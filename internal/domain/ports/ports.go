// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"
	"image"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one per input, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Identity names the embedding function (provider and model).
	// Index builds and queries must agree on it.
	Identity() string
}

// GenerateOptions tunes a single completion.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// LLMService generates text responses from a language model.
type LLMService interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// StreamingLLM is implemented by LLMs that can stream tokens.
type StreamingLLM interface {
	// GenerateStream produces a streaming response (for real-time UI).
	// Returns a channel of StreamTokens for token-by-token output.
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamToken, error)
}

// StreamToken represents a single token in a streaming LLM response.
type StreamToken struct {
	Content string
	Done    bool
	Error   error
}

// VectorIndex is the embedding-aware chunk index used by the pipeline and queries.
type VectorIndex interface {
	// ResetCollection drops the collection if it exists and creates an empty one.
	ResetCollection(ctx context.Context) error

	// BulkAdd embeds and stores records. Ids must be unique within the call.
	BulkAdd(ctx context.Context, records []entities.IndexRecord) error

	// Query returns the k records nearest to text, nearest first.
	// Returns ErrCollectionNotFound before the first build.
	Query(ctx context.Context, text string, k int) ([]entities.QueryResult, error)
}

// VectorStore persists and queries raw embeddings grouped in named collections.
// Dependency Inversion: Usecases depend on this abstraction, not a database directly.
type VectorStore interface {
	// CreateCollection creates an empty collection. It fails if one already exists.
	CreateCollection(ctx context.Context, info entities.CollectionInfo) error

	// GetCollection returns ErrCollectionNotFound when name is unknown.
	GetCollection(ctx context.Context, name string) (*entities.CollectionInfo, error)

	// DropCollection removes a collection and its records. Missing is not an error.
	DropCollection(ctx context.Context, name string) error

	// Add stores records that already carry embeddings.
	Add(ctx context.Context, collection string, records []entities.IndexRecord) error

	// Search finds the topK records most similar to embedding.
	Search(ctx context.Context, collection string, embedding []float32, topK int) ([]entities.QueryResult, error)

	// Count returns the number of records in a collection.
	Count(ctx context.Context, collection string) (int, error)
}

// SourceDiscoverer enumerates the files of one build.
type SourceDiscoverer interface {
	Discover(ctx context.Context, corpusRoot, docsRoot string) ([]entities.SourceFile, error)
}

// ContentExtractor turns a source file into zero or more text units.
type ContentExtractor interface {
	Extract(ctx context.Context, file entities.SourceFile) ([]entities.ExtractedUnit, error)
}

// DocumentParser extracts text from binary document formats (PDF).
// Interface Segregation: Separate from ContentExtractor for different responsibilities.
type DocumentParser interface {
	// Parse extracts text content from document bytes.
	Parse(ctx context.Context, data []byte, filename string) (string, error)

	// SupportedFormats returns formats this parser handles (e.g., "pdf").
	SupportedFormats() []string
}

// OCREngine recognises text in a (preprocessed) raster image.
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// ImageReader extracts text from raw, still-encoded image bytes.
type ImageReader interface {
	ReadImage(ctx context.Context, data []byte) (string, error)
}

// FileWatcher monitors a directory tree for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}
