package vectordb

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// runStoreContract exercises the behaviour every ports.VectorStore shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) ports.VectorStore) {
	ctx := context.Background()
	info := entities.CollectionInfo{
		Name:           "code_chunks",
		EmbeddingModel: "ollama:nomic-embed-text",
		CreatedAt:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	records := []entities.IndexRecord{
		{ID: "chunk_0", Text: "hello", Embedding: []float32{1, 0, 0},
			Metadata: entities.ChunkMetadata{Source: "a.go", FilePath: "/repo/a.go", Kind: entities.KindCode}},
		{ID: "chunk_1", Text: "world", Embedding: []float32{0, 1, 0},
			Metadata: entities.ChunkMetadata{Source: "docs/b.png", FilePath: "/repo/docs/b.png", Kind: entities.KindImage}},
		{ID: "chunk_2", Text: "mixed", Embedding: []float32{0.7, 0.7, 0},
			Metadata: entities.ChunkMetadata{Source: "c.go", FilePath: "/repo/c.go", Kind: entities.KindCode}},
	}

	t.Run("missing collection", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetCollection(ctx, "code_chunks")
		assert.ErrorIs(t, err, ports.ErrCollectionNotFound)
		_, err = s.Search(ctx, "code_chunks", []float32{1, 0, 0}, 1)
		assert.ErrorIs(t, err, ports.ErrCollectionNotFound)
		assert.NoError(t, s.DropCollection(ctx, "code_chunks"))
	})

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateCollection(ctx, info))

		got, err := s.GetCollection(ctx, "code_chunks")
		require.NoError(t, err)
		assert.Equal(t, "code_chunks", got.Name)
		assert.Equal(t, "ollama:nomic-embed-text", got.EmbeddingModel)
		assert.True(t, got.CreatedAt.Equal(info.CreatedAt))

		assert.ErrorIs(t, s.CreateCollection(ctx, info), ports.ErrCollectionExists)
	})

	t.Run("add and search", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateCollection(ctx, info))
		require.NoError(t, s.Add(ctx, "code_chunks", records))

		n, err := s.Count(ctx, "code_chunks")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		results, err := s.Search(ctx, "code_chunks", []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "chunk_0", results[0].Record.ID)
		assert.Equal(t, "chunk_2", results[1].Record.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.Equal(t, "hello", results[0].Record.Text)
		assert.Equal(t, records[0].Metadata, results[0].Record.Metadata)
	})

	t.Run("k larger than collection", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateCollection(ctx, info))
		require.NoError(t, s.Add(ctx, "code_chunks", records[:1]))

		results, err := s.Search(ctx, "code_chunks", []float32{0, 1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("duplicate id fails batch", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateCollection(ctx, info))
		require.NoError(t, s.Add(ctx, "code_chunks", records[:1]))

		err := s.Add(ctx, "code_chunks", []entities.IndexRecord{records[1], records[0]})
		assert.ErrorIs(t, err, ports.ErrDuplicateID)
	})

	t.Run("drop removes records", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateCollection(ctx, info))
		require.NoError(t, s.Add(ctx, "code_chunks", records))
		require.NoError(t, s.DropCollection(ctx, "code_chunks"))

		_, err := s.Count(ctx, "code_chunks")
		assert.ErrorIs(t, err, ports.ErrCollectionNotFound)

		require.NoError(t, s.CreateCollection(ctx, info))
		n, err := s.Count(ctx, "code_chunks")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestInMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) ports.VectorStore {
		return NewInMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) ports.VectorStore {
		s, err := NewSQLiteStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.CreateCollection(ctx, entities.CollectionInfo{Name: "c", EmbeddingModel: "m"}))
	require.NoError(t, s.Add(ctx, "c", []entities.IndexRecord{{ID: "chunk_0", Text: "x", Embedding: []float32{1}}}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_CorruptEmbeddingIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	ctx := context.Background()
	s, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateCollection(ctx, testCollection()))
	require.NoError(t, s.Add(ctx, "code_chunks", []entities.IndexRecord{
		{ID: "chunk_0", Text: "good", Embedding: []float32{1, 0}},
		{ID: "chunk_1", Text: "bad", Embedding: []float32{0, 1}},
	}))
	_, err = s.db.ExecContext(ctx, "UPDATE chunks SET embedding = ? WHERE id = ?", []byte("{not json"), "chunk_1")
	require.NoError(t, err)

	results, err := s.Search(ctx, "code_chunks", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk_0", results[0].Record.ID)
	assert.Contains(t, logs.String(), "[WARN] skipping chunk_1 in code_chunks: corrupt embedding")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func testCollection() entities.CollectionInfo {
	return entities.CollectionInfo{Name: "code_chunks", EmbeddingModel: "ollama:nomic-embed-text"}
}
