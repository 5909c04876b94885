package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// SQLiteStore implements ports.VectorStore with SQLite-based persistence.
// Embeddings are stored as JSON and searched by brute force.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	dataPath string
}

var _ ports.VectorStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) dataPath/vectors.db.
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "vectors.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		dataPath: dataPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		embedding_model TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		file_path TEXT NOT NULL,
		kind TEXT NOT NULL,
		embedding BLOB NOT NULL,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateCollection creates an empty collection.
func (s *SQLiteStore) CreateCollection(ctx context.Context, info entities.CollectionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (name, embedding_model, created_at) VALUES (?, ?, ?)",
		info.Name, info.EmbeddingModel, info.CreatedAt.UTC().Format(time.RFC3339Nano))
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("%w: %s", ports.ErrCollectionExists, info.Name)
	}
	if err != nil {
		return fmt.Errorf("inserting collection: %w", err)
	}
	return nil
}

// GetCollection returns the collection's metadata.
func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (*entities.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getCollection(ctx, s.db, name)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) getCollection(ctx context.Context, q queryRower, name string) (*entities.CollectionInfo, error) {
	var info entities.CollectionInfo
	var created string
	err := q.QueryRowContext(ctx,
		"SELECT name, embedding_model, created_at FROM collections WHERE name = ?", name,
	).Scan(&info.Name, &info.EmbeddingModel, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ports.ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		info.CreatedAt = t
	}
	return &info, nil
}

// DropCollection removes a collection and its records.
func (s *SQLiteStore) DropCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", name); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return tx.Commit()
}

// Add stores records in one transaction. A duplicate id fails the whole batch.
func (s *SQLiteStore) Add(ctx context.Context, collection string, records []entities.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.getCollection(ctx, tx, collection); err != nil {
		return err
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq) + 1, 0) FROM chunks WHERE collection = ?", collection,
	).Scan(&next); err != nil {
		return fmt.Errorf("reading sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection, id, seq, content, source, file_path, kind, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		embeddingJSON, err := json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			collection,
			r.ID,
			next+i,
			r.Text,
			r.Metadata.Source,
			r.Metadata.FilePath,
			string(r.Metadata.Kind),
			embeddingJSON,
		)
		if isPrimaryKeyViolation(err) {
			return fmt.Errorf("%w: %s", ports.ErrDuplicateID, r.ID)
		}
		if err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	return tx.Commit()
}

// Search finds the most similar records to a query embedding.
func (s *SQLiteStore) Search(ctx context.Context, collection string, embedding []float32, k int) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getCollection(ctx, s.db, collection); err != nil {
		return nil, err
	}

	// Brute force over the whole collection.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, source, file_path, kind, embedding
		FROM chunks WHERE collection = ? ORDER BY seq
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var records []entities.IndexRecord
	for rows.Next() {
		var r entities.IndexRecord
		var kind string
		var embeddingJSON []byte

		if err := rows.Scan(&r.ID, &r.Text, &r.Metadata.Source, &r.Metadata.FilePath, &kind, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal(embeddingJSON, &r.Embedding); err != nil {
			logger.Warn("skipping %s in %s: corrupt embedding: %v", r.ID, collection, err)
			continue
		}
		r.Metadata.Kind = entities.SourceKind(kind)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return topK(records, embedding, k), nil
}

// Count returns the number of records in a collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.getCollection(ctx, s.db, collection); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE collection = ?", collection).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
