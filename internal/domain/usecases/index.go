package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

// DefaultCollection is the fixed collection every build replaces.
const DefaultCollection = "code_chunks"

// EmbeddingIndex implements ports.VectorIndex on top of a raw VectorStore.
// It owns the embedding step, so build and query always embed through the same
// EmbeddingService, and it records that service's identity on the collection.
type EmbeddingIndex struct {
	store      ports.VectorStore
	embedder   ports.EmbeddingService
	collection string
	now        func() time.Time
}

var _ ports.VectorIndex = (*EmbeddingIndex)(nil)

// NewEmbeddingIndex creates an index over store using embedder.
func NewEmbeddingIndex(store ports.VectorStore, embedder ports.EmbeddingService, collection string) *EmbeddingIndex {
	if collection == "" {
		collection = DefaultCollection
	}
	return &EmbeddingIndex{
		store:      store,
		embedder:   embedder,
		collection: collection,
		now:        time.Now,
	}
}

// Collection returns the collection name this index manages.
func (ix *EmbeddingIndex) Collection() string {
	return ix.collection
}

// ResetCollection drops any existing collection and creates an empty one.
func (ix *EmbeddingIndex) ResetCollection(ctx context.Context) error {
	if err := ix.store.DropCollection(ctx, ix.collection); err != nil {
		return fmt.Errorf("dropping collection %q: %w", ix.collection, err)
	}
	info := entities.CollectionInfo{
		Name:           ix.collection,
		EmbeddingModel: ix.embedder.Identity(),
		CreatedAt:      ix.now().UTC(),
	}
	if err := ix.store.CreateCollection(ctx, info); err != nil {
		return fmt.Errorf("creating collection %q: %w", ix.collection, err)
	}
	return nil
}

// BulkAdd embeds every record's text and stores the batch.
// Duplicate ids are rejected before anything is embedded or written.
func (ix *EmbeddingIndex) BulkAdd(ctx context.Context, records []entities.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(records))
	texts := make([]string, len(records))
	for i, r := range records {
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: %s", ports.ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
		texts[i] = r.Text
	}

	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding records: %w", err)
	}
	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding records: got %d vectors for %d texts", len(embeddings), len(records))
	}

	stored := make([]entities.IndexRecord, len(records))
	for i := range records {
		stored[i] = records[i]
		stored[i].Embedding = embeddings[i]
	}

	if err := ix.store.Add(ctx, ix.collection, stored); err != nil {
		return fmt.Errorf("storing records: %w", err)
	}
	return nil
}

// Query returns the k records nearest to text, nearest first.
func (ix *EmbeddingIndex) Query(ctx context.Context, text string, k int) ([]entities.QueryResult, error) {
	info, err := ix.store.GetCollection(ctx, ix.collection)
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", ix.collection, err)
	}
	if info.EmbeddingModel != "" && info.EmbeddingModel != ix.embedder.Identity() {
		return nil, fmt.Errorf("%w: collection built with %q, querying with %q",
			ports.ErrEmbeddingMismatch, info.EmbeddingModel, ix.embedder.Identity())
	}

	embedding, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := ix.store.Search(ctx, ix.collection, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// Count returns the number of records in the collection.
func (ix *EmbeddingIndex) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx, ix.collection)
}
