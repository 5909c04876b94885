package usecases

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingService with letter-frequency vectors,
// so texts sharing letters land close together.
type mockEmbedder struct {
	identity string
	err      error

	mu    sync.Mutex
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	vec := make([]float32, 27)
	vec[26] = 0.01
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

func (m *mockEmbedder) Identity() string {
	if m.identity == "" {
		return "mock:letters"
	}
	return m.identity
}

// mockVectorStore implements ports.VectorStore in memory.
type mockVectorStore struct {
	mu          sync.Mutex
	collections map[string]*entities.CollectionInfo
	records     map[string][]entities.IndexRecord
	addErr      error
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{
		collections: make(map[string]*entities.CollectionInfo),
		records:     make(map[string][]entities.IndexRecord),
	}
}

func (m *mockVectorStore) CreateCollection(ctx context.Context, info entities.CollectionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[info.Name]; ok {
		return ports.ErrCollectionExists
	}
	m.collections[info.Name] = &info
	return nil
}

func (m *mockVectorStore) GetCollection(ctx context.Context, name string) (*entities.CollectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.collections[name]
	if !ok {
		return nil, ports.ErrCollectionNotFound
	}
	cp := *info
	return &cp, nil
}

func (m *mockVectorStore) DropCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	delete(m.records, name)
	return nil
}

func (m *mockVectorStore) Add(ctx context.Context, collection string, records []entities.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	if _, ok := m.collections[collection]; !ok {
		return ports.ErrCollectionNotFound
	}
	m.records[collection] = append(m.records[collection], records...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]entities.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		return nil, ports.ErrCollectionNotFound
	}
	results := make([]entities.QueryResult, 0, len(m.records[collection]))
	for _, r := range m.records[collection] {
		results = append(results, entities.QueryResult{Record: r, Score: cosine(embedding, r.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *mockVectorStore) Count(ctx context.Context, collection string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		return 0, ports.ErrCollectionNotFound
	}
	return len(m.records[collection]), nil
}

func (m *mockVectorStore) stored(collection string) []entities.IndexRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.IndexRecord(nil), m.records[collection]...)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// mockDiscoverer returns a fixed file list.
type mockDiscoverer struct {
	files []entities.SourceFile
	err   error
}

func (m *mockDiscoverer) Discover(ctx context.Context, corpusRoot, docsRoot string) ([]entities.SourceFile, error) {
	return m.files, m.err
}

// mockExtractor returns the text registered for a path as a single unit.
type mockExtractor struct {
	texts   map[string]string
	failOn  map[string]bool
	panicOn map[string]bool
}

var errCorrupt = errors.New("corrupt file")

func (m *mockExtractor) Extract(ctx context.Context, file entities.SourceFile) ([]entities.ExtractedUnit, error) {
	if m.failOn[file.RelPath] {
		return nil, errCorrupt
	}
	if m.panicOn[file.RelPath] {
		panic("malformed object reference")
	}
	text, ok := m.texts[file.RelPath]
	if !ok {
		return nil, nil
	}
	return []entities.ExtractedUnit{{
		Text:    text,
		Kind:    file.Kind,
		RelPath: file.RelPath,
		AbsPath: file.AbsPath,
	}}, nil
}

// mockLLM implements ports.LLMService and records what it was asked.
type mockLLM struct {
	response string
	err      error

	mu      sync.Mutex
	prompts []string
	opts    []ports.GenerateOptions
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// mockStreamingLLM adds token streaming to mockLLM.
type mockStreamingLLM struct {
	mockLLM
	tokens []string
}

func (m *mockStreamingLLM) GenerateStream(ctx context.Context, prompt string, opts ports.GenerateOptions) (<-chan ports.StreamToken, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	ch := make(chan ports.StreamToken, len(m.tokens)+1)
	for _, tok := range m.tokens {
		ch <- ports.StreamToken{Content: tok}
	}
	ch <- ports.StreamToken{Done: true}
	close(ch)
	return ch, nil
}

// mockImageReader implements ports.ImageReader.
type mockImageReader struct {
	text string
	err  error
}

func (m *mockImageReader) ReadImage(ctx context.Context, data []byte) (string, error) {
	return m.text, m.err
}

func codeFile(rel string) entities.SourceFile {
	return entities.SourceFile{AbsPath: "/repo/" + rel, RelPath: rel, Kind: entities.KindCode}
}
