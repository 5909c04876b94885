package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

// OpenAIAdapter implements ports.LLMService and ports.StreamingLLM with the
// chat completions API or any server compatible with it.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

var (
	_ ports.LLMService   = (*OpenAIAdapter)(nil)
	_ ports.StreamingLLM = (*OpenAIAdapter)(nil)
)

// NewOpenAIAdapter creates an adapter. An empty baseURL uses api.openai.com.
func NewOpenAIAdapter(apiKey, baseURL, model string) *OpenAIAdapter {
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (a *OpenAIAdapter) params(prompt string, opts ports.GenerateOptions) openai.ChatCompletionNewParams {
	p := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		p.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	return p
}

// Generate returns the first choice's message content.
func (a *OpenAIAdapter) Generate(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, a.params(prompt, opts))
	if err != nil {
		return "", fmt.Errorf("calling OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream streams content deltas as they arrive.
func (a *OpenAIAdapter) GenerateStream(ctx context.Context, prompt string, opts ports.GenerateOptions) (<-chan ports.StreamToken, error) {
	stream := a.client.Chat.Completions.NewStreaming(ctx, a.params(prompt, opts))

	ch := make(chan ports.StreamToken, 100)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				ch <- ports.StreamToken{Content: delta}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- ports.StreamToken{Done: true, Error: fmt.Errorf("streaming from OpenAI: %w", err)}
			return
		}
		ch <- ports.StreamToken{Done: true}
	}()
	return ch, nil
}
