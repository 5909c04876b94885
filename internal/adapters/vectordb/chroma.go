package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

// Metadata keys written on Chroma collections.
const (
	chromaSpaceKey     = "hnsw:space"
	chromaModelKey     = "embedding_model"
	chromaCreatedAtKey = "created_at"
)

// ChromaStore implements ports.VectorStore against a Chroma server's REST API.
// Collections use cosine distance; scores are reported as 1 - distance.
type ChromaStore struct {
	baseURL string
	client  *http.Client
}

var _ ports.VectorStore = (*ChromaStore)(nil)

// NewChromaStore creates a client for the Chroma server at baseURL.
func NewChromaStore(baseURL string) *ChromaStore {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &ChromaStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chromaCollection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

type chromaCreateRequest struct {
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata"`
	GetOrCreate bool           `json:"get_or_create"`
}

type chromaAddRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

type chromaQueryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

// chromaError is returned for non-2xx responses.
type chromaError struct {
	status int
	body   string
}

func (e *chromaError) Error() string {
	return fmt.Sprintf("chroma returned status %d: %s", e.status, e.body)
}

func (e *chromaError) notFound() bool {
	return e.status == http.StatusNotFound || strings.Contains(e.body, "does not exist")
}

func (e *chromaError) exists() bool {
	return e.status == http.StatusConflict || strings.Contains(e.body, "already exists")
}

// CreateCollection creates an empty cosine-space collection.
func (s *ChromaStore) CreateCollection(ctx context.Context, info entities.CollectionInfo) error {
	req := chromaCreateRequest{
		Name: info.Name,
		Metadata: map[string]any{
			chromaSpaceKey:     "cosine",
			chromaModelKey:     info.EmbeddingModel,
			chromaCreatedAtKey: info.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
	err := s.do(ctx, http.MethodPost, "/api/v1/collections", req, nil)
	if ce, ok := asChromaError(err); ok && ce.exists() {
		return fmt.Errorf("%w: %s", ports.ErrCollectionExists, info.Name)
	}
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	return nil
}

// GetCollection returns the collection's metadata.
func (s *ChromaStore) GetCollection(ctx context.Context, name string) (*entities.CollectionInfo, error) {
	c, err := s.lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	info := &entities.CollectionInfo{Name: c.Name}
	if model, ok := c.Metadata[chromaModelKey].(string); ok {
		info.EmbeddingModel = model
	}
	if created, ok := c.Metadata[chromaCreatedAtKey].(string); ok {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			info.CreatedAt = t
		}
	}
	return info, nil
}

// DropCollection deletes a collection. A missing collection is not an error.
func (s *ChromaStore) DropCollection(ctx context.Context, name string) error {
	err := s.do(ctx, http.MethodDelete, "/api/v1/collections/"+url.PathEscape(name), nil, nil)
	if ce, ok := asChromaError(err); ok && ce.notFound() {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Add uploads records in one request.
func (s *ChromaStore) Add(ctx context.Context, collection string, records []entities.IndexRecord) error {
	c, err := s.lookup(ctx, collection)
	if err != nil {
		return err
	}

	req := chromaAddRequest{
		IDs:        make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Documents:  make([]string, len(records)),
		Metadatas:  make([]map[string]any, len(records)),
	}
	for i, r := range records {
		req.IDs[i] = r.ID
		req.Embeddings[i] = r.Embedding
		req.Documents[i] = r.Text
		req.Metadatas[i] = map[string]any{
			"source":    r.Metadata.Source,
			"file_path": r.Metadata.FilePath,
			"type":      string(r.Metadata.Kind),
		}
	}

	err = s.do(ctx, http.MethodPost, "/api/v1/collections/"+c.ID+"/add", req, nil)
	if ce, ok := asChromaError(err); ok && strings.Contains(ce.body, "uplicate") {
		return fmt.Errorf("%w: %v", ports.ErrDuplicateID, err)
	}
	if err != nil {
		return fmt.Errorf("adding records: %w", err)
	}
	return nil
}

// Search asks Chroma for the k nearest records.
func (s *ChromaStore) Search(ctx context.Context, collection string, embedding []float32, k int) ([]entities.QueryResult, error) {
	c, err := s.lookup(ctx, collection)
	if err != nil {
		return nil, err
	}

	req := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        k,
		Include:         []string{"documents", "metadatas", "distances"},
	}
	var resp chromaQueryResponse
	if err := s.do(ctx, http.MethodPost, "/api/v1/collections/"+c.ID+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	if len(resp.IDs) == 0 {
		return []entities.QueryResult{}, nil
	}

	ids := resp.IDs[0]
	results := make([]entities.QueryResult, len(ids))
	for i, id := range ids {
		r := entities.IndexRecord{ID: id}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			r.Text = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			r.Metadata = metadataFrom(resp.Metadatas[0][i])
		}
		score := 0.0
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			score = 1 - resp.Distances[0][i]
		}
		results[i] = entities.QueryResult{Record: r, Score: score}
	}
	return results, nil
}

// Count returns the number of records in a collection.
func (s *ChromaStore) Count(ctx context.Context, collection string) (int, error) {
	c, err := s.lookup(ctx, collection)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.do(ctx, http.MethodGet, "/api/v1/collections/"+c.ID+"/count", nil, &n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Heartbeat checks that the server is reachable.
func (s *ChromaStore) Heartbeat(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/api/v1/heartbeat", nil, nil)
}

func (s *ChromaStore) lookup(ctx context.Context, name string) (*chromaCollection, error) {
	var c chromaCollection
	err := s.do(ctx, http.MethodGet, "/api/v1/collections/"+url.PathEscape(name), nil, &c)
	if ce, ok := asChromaError(err); ok && ce.notFound() {
		return nil, fmt.Errorf("%w: %s", ports.ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	return &c, nil
}

func (s *ChromaStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling Chroma: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &chromaError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func asChromaError(err error) (*chromaError, bool) {
	var ce *chromaError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func metadataFrom(m map[string]any) entities.ChunkMetadata {
	var md entities.ChunkMetadata
	md.Source, _ = m["source"].(string)
	md.FilePath, _ = m["file_path"].(string)
	if kind, ok := m["type"].(string); ok {
		md.Kind = entities.SourceKind(kind)
	}
	return md
}
