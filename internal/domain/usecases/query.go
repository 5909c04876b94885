// Package usecases - query.go handles retrieval and grounded answer generation.
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

const (
	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5

	// DefaultExcerptLen is the display length of a cited source.
	DefaultExcerptLen = 200

	// NotIndexedMessage is returned instead of an answer before the first build.
	NotIndexedMessage = "The index has not been built yet. Run an index build first, then ask again."

	// NoImageContextAnswer is what the model is told to say when OCR text is unrelated.
	NoImageContextAnswer = "The text extracted from the image contains no relevant information."
)

// ErrNoImageReader is returned by AnswerFromImage when OCR is not wired.
var ErrNoImageReader = errors.New("image processing is not configured")

// QueryUseCase handles retrieval and response generation.
// Single Responsibility: Only query/response logic.
type QueryUseCase struct {
	index      ports.VectorIndex
	llm        ports.LLMService
	images     ports.ImageReader
	topK       int
	excerptLen int
	maxTokens  int
	language   string
}

// QueryOption configures a QueryUseCase.
type QueryOption func(*QueryUseCase)

// WithTopK sets the default number of retrieved chunks.
func WithTopK(k int) QueryOption {
	return func(uc *QueryUseCase) {
		if k > 0 {
			uc.topK = k
		}
	}
}

// WithExcerptLen sets how many characters of each source are returned.
func WithExcerptLen(n int) QueryOption {
	return func(uc *QueryUseCase) {
		if n > 0 {
			uc.excerptLen = n
		}
	}
}

// WithMaxTokens caps the answer length. Zero leaves it to the LLM adapter.
func WithMaxTokens(n int) QueryOption {
	return func(uc *QueryUseCase) {
		if n > 0 {
			uc.maxTokens = n
		}
	}
}

// WithAnswerLanguage asks the model to answer in the given language.
func WithAnswerLanguage(lang string) QueryOption {
	return func(uc *QueryUseCase) {
		uc.language = strings.TrimSpace(lang)
	}
}

// WithImageReader enables AnswerFromImage.
func WithImageReader(r ports.ImageReader) QueryOption {
	return func(uc *QueryUseCase) {
		uc.images = r
	}
}

// NewQueryUseCase creates a QueryUseCase with injected dependencies.
func NewQueryUseCase(index ports.VectorIndex, llm ports.LLMService, opts ...QueryOption) *QueryUseCase {
	uc := &QueryUseCase{
		index:      index,
		llm:        llm,
		topK:       DefaultTopK,
		excerptLen: DefaultExcerptLen,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Answer retrieves context for question and asks the LLM.
// Before the first build it returns NotIndexedMessage and no sources.
func (uc *QueryUseCase) Answer(ctx context.Context, question string, k int) (*entities.Answer, error) {
	results, err := uc.Search(ctx, question, k)
	if errors.Is(err, ports.ErrCollectionNotFound) {
		return &entities.Answer{Text: NotIndexedMessage, Sources: []entities.Source{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	prompt := uc.buildPrompt(question, results)
	text, err := uc.llm.Generate(ctx, prompt, uc.generateOptions())
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &entities.Answer{
		Text:    text,
		Sources: uc.sources(results),
	}, nil
}

// StreamAnswer is Answer with token streaming. It falls back to a single
// token when the LLM cannot stream.
func (uc *QueryUseCase) StreamAnswer(ctx context.Context, question string, k int) (<-chan ports.StreamToken, []entities.Source, error) {
	results, err := uc.Search(ctx, question, k)
	if errors.Is(err, ports.ErrCollectionNotFound) {
		return singleToken(NotIndexedMessage), []entities.Source{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("retrieving context: %w", err)
	}

	prompt := uc.buildPrompt(question, results)
	opts := uc.generateOptions()

	if streamer, ok := uc.llm.(ports.StreamingLLM); ok {
		tokens, err := streamer.GenerateStream(ctx, prompt, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("generating answer: %w", err)
		}
		return tokens, uc.sources(results), nil
	}

	text, err := uc.llm.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("generating answer: %w", err)
	}
	return singleToken(text), uc.sources(results), nil
}

// Search only retrieves relevant chunks without LLM generation.
func (uc *QueryUseCase) Search(ctx context.Context, question string, k int) ([]entities.QueryResult, error) {
	if k <= 0 {
		k = uc.topK
	}
	return uc.index.Query(ctx, question, k)
}

// AnswerFromImage grounds the LLM on text read from a single image instead of
// the index. With an empty question only the extracted text is returned.
func (uc *QueryUseCase) AnswerFromImage(ctx context.Context, data []byte, question string) (*entities.ImageAnswer, error) {
	if uc.images == nil {
		return nil, ErrNoImageReader
	}

	text, err := uc.images.ReadImage(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	result := &entities.ImageAnswer{ExtractedText: text}
	if strings.TrimSpace(question) == "" {
		return result, nil
	}

	answer, err := uc.llm.Generate(ctx, uc.buildImagePrompt(question, text), uc.generateOptions())
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	result.Answer = answer
	return result, nil
}

// buildPrompt creates the grounding prompt, one labelled block per snippet.
func (uc *QueryUseCase) buildPrompt(question string, results []entities.QueryResult) string {
	var sb strings.Builder
	sb.WriteString("You are an assistant that answers questions about a codebase.\n")
	sb.WriteString("Use the code snippets below to answer the question.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nReference snippets:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "\n--- Snippet %d (file: %s) ---\n", i+1, r.Record.Metadata.Source)
		sb.WriteString(r.Record.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("\nAnswer the question based on the snippets above.")
	uc.writeLanguage(&sb)
	return sb.String()
}

func (uc *QueryUseCase) buildImagePrompt(question, extracted string) string {
	var sb strings.Builder
	sb.WriteString("The following text was extracted from an image:\n\n")
	sb.WriteString(extracted)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer the question based on the extracted text above.\n")
	fmt.Fprintf(&sb, "If the text contains nothing relevant, answer: %q", NoImageContextAnswer)
	uc.writeLanguage(&sb)
	return sb.String()
}

// generateOptions always uses temperature 0.
func (uc *QueryUseCase) generateOptions() ports.GenerateOptions {
	return ports.GenerateOptions{Temperature: 0, MaxTokens: uc.maxTokens}
}

func (uc *QueryUseCase) writeLanguage(sb *strings.Builder) {
	if uc.language != "" {
		fmt.Fprintf(sb, "\nAnswer in %s.", uc.language)
	}
}

func (uc *QueryUseCase) sources(results []entities.QueryResult) []entities.Source {
	sources := make([]entities.Source, len(results))
	for i, r := range results {
		sources[i] = entities.Source{
			File:    r.Record.Metadata.Source,
			Excerpt: Truncate(r.Record.Text, uc.excerptLen),
		}
	}
	return sources
}

// Truncate shortens s to n characters, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func singleToken(text string) <-chan ports.StreamToken {
	ch := make(chan ports.StreamToken, 1)
	ch <- ports.StreamToken{Content: text, Done: true}
	close(ch)
	return ch
}
