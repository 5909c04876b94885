// Package embedding provides embedding adapters.
// Clean Architecture: These adapters implement ports.EmbeddingService.
// They know about provider specifics but the domain layer doesn't.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// DefaultOllamaBatch is the number of inputs sent per /api/embed request.
const DefaultOllamaBatch = 32

// OllamaAdapter implements ports.EmbeddingService against Ollama's batch
// /api/embed endpoint.
type OllamaAdapter struct {
	baseURL   string
	model     string
	batchSize int
	client    *http.Client
}

var _ ports.EmbeddingService = (*OllamaAdapter)(nil)

// NewOllamaAdapter creates a new Ollama embedding adapter.
func NewOllamaAdapter(baseURL, model string) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaAdapter{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		batchSize: DefaultOllamaBatch,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Identity names the provider and model.
func (a *OllamaAdapter) Identity() string {
	return "ollama:" + a.model
}

// Embed generates an embedding for a single text.
func (a *OllamaAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := a.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in requests of at most batchSize inputs, keeping
// input order.
func (a *OllamaAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += a.batchSize {
		end := min(start+a.batchSize, len(texts))
		out, err := a.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
		}
		embeddings = append(embeddings, out...)
	}
	return embeddings, nil
}

func (a *OllamaAdapter) embed(ctx context.Context, input []string) ([][]float32, error) {
	jsonData, err := json.Marshal(ollamaEmbedRequest{Model: a.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	var body ollamaEmbedResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK {
		if body.Error != "" {
			return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, body.Error)
		}
		return nil, fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	}

	if len(body.Embeddings) != len(input) {
		return nil, fmt.Errorf("Ollama returned %d embeddings for %d inputs", len(body.Embeddings), len(input))
	}
	for i, emb := range body.Embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("Ollama returned an empty embedding for input %d (model %s)", i, a.model)
		}
	}

	logger.Debug("embedded %d texts into %d dimensions", len(input), len(body.Embeddings[0]))
	return body.Embeddings, nil
}
