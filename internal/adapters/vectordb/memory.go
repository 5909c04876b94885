// Package vectordb provides vector store adapters.
// Clean Architecture: Adapters implementing ports.VectorStore.
package vectordb

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

// InMemoryStore keeps collections in process memory. Nothing survives a restart.
// Open-Closed: Can be replaced with SQLite or Chroma without changing usecases.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	info    entities.CollectionInfo
	records []entities.IndexRecord
	ids     map[string]struct{}
}

var _ ports.VectorStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]*memCollection)}
}

// CreateCollection creates an empty collection.
func (s *InMemoryStore) CreateCollection(ctx context.Context, info entities.CollectionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[info.Name]; ok {
		return fmt.Errorf("%w: %s", ports.ErrCollectionExists, info.Name)
	}
	s.collections[info.Name] = &memCollection{info: info, ids: make(map[string]struct{})}
	return nil
}

// GetCollection returns the collection's metadata.
func (s *InMemoryStore) GetCollection(ctx context.Context, name string) (*entities.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrCollectionNotFound, name)
	}
	info := c.info
	return &info, nil
}

// DropCollection removes a collection and its records.
func (s *InMemoryStore) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, name)
	return nil
}

// Add stores records. The batch is rejected whole if any id is already present.
func (s *InMemoryStore) Add(ctx context.Context, collection string, records []entities.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ports.ErrCollectionNotFound, collection)
	}

	batch := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, dup := c.ids[r.ID]; dup {
			return fmt.Errorf("%w: %s", ports.ErrDuplicateID, r.ID)
		}
		if _, dup := batch[r.ID]; dup {
			return fmt.Errorf("%w: %s", ports.ErrDuplicateID, r.ID)
		}
		batch[r.ID] = struct{}{}
	}

	for _, r := range records {
		r.Embedding = append([]float32(nil), r.Embedding...)
		c.records = append(c.records, r)
		c.ids[r.ID] = struct{}{}
	}
	return nil
}

// Search finds the most similar records to a query embedding.
func (s *InMemoryStore) Search(ctx context.Context, collection string, embedding []float32, k int) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrCollectionNotFound, collection)
	}
	return topK(c.records, embedding, k), nil
}

// Count returns the number of records in a collection.
func (s *InMemoryStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ports.ErrCollectionNotFound, collection)
	}
	return len(c.records), nil
}
