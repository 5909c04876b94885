package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

// DefaultOpenAIBatch caps how many inputs go into one embeddings request.
const DefaultOpenAIBatch = 256

// OpenAIAdapter implements ports.EmbeddingService with the OpenAI embeddings
// API or any server compatible with it.
type OpenAIAdapter struct {
	client    openai.Client
	model     string
	batchSize int
}

var _ ports.EmbeddingService = (*OpenAIAdapter)(nil)

// NewOpenAIAdapter creates an adapter. An empty baseURL uses api.openai.com.
func NewOpenAIAdapter(apiKey, baseURL, model string) *OpenAIAdapter {
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client:    openai.NewClient(opts...),
		model:     model,
		batchSize: DefaultOpenAIBatch,
	}
}

// Identity names the provider and model.
func (a *OpenAIAdapter) Identity() string {
	return "openai:" + a.model
}

// Embed generates an embedding for a single text.
func (a *OpenAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := a.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in requests of at most batchSize inputs.
func (a *OpenAIAdapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += a.batchSize {
		end := min(start+a.batchSize, len(texts))

		resp, err := a.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
			Model: openai.EmbeddingModel(a.model),
		})
		if err != nil {
			return nil, fmt.Errorf("calling OpenAI embeddings: %w", err)
		}

		for _, d := range resp.Data {
			i := start + int(d.Index)
			if i < start || i >= end {
				return nil, fmt.Errorf("OpenAI returned out-of-range index %d", d.Index)
			}
			embeddings[i] = toFloat32(d.Embedding)
		}
	}

	for i, emb := range embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
	}
	return embeddings, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
