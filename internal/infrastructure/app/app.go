// Package app wires adapters and usecases into a runnable application.
// Clean Architecture: the composition root; the only place that knows every layer.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/0xcro3dile/coderag-go/internal/adapters/embedding"
	"github.com/0xcro3dile/coderag-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/coderag-go/internal/adapters/llm"
	"github.com/0xcro3dile/coderag-go/internal/adapters/loader"
	"github.com/0xcro3dile/coderag-go/internal/adapters/ocr"
	"github.com/0xcro3dile/coderag-go/internal/adapters/parser"
	"github.com/0xcro3dile/coderag-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/coderag-go/internal/config"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
	"github.com/0xcro3dile/coderag-go/internal/domain/usecases"
	httpserver "github.com/0xcro3dile/coderag-go/internal/infrastructure/http"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// Deps overrides collaborators that would otherwise be built from config.
// Nil fields are constructed normally.
type Deps struct {
	Embedder ports.EmbeddingService
	LLM      ports.LLMService
	OCR      ports.OCREngine
	Store    ports.VectorStore
}

// App holds the wired application.
type App struct {
	Config     *config.AppConfig
	Discoverer *loader.Discoverer
	Index      *usecases.EmbeddingIndex
	Pipeline   *usecases.IndexingPipeline
	Builds     *usecases.BuildCoordinator
	Query      *usecases.QueryUseCase

	closers []io.Closer
}

// New builds the application from cfg.
func New(cfg *config.AppConfig) (*App, error) {
	return NewWithDeps(cfg, Deps{})
}

// NewWithDeps builds the application, using any collaborators given in deps.
func NewWithDeps(cfg *config.AppConfig, deps Deps) (*App, error) {
	a := &App{Config: cfg}

	store := deps.Store
	if store == nil {
		s, err := newVectorStore(cfg.VectorStore)
		if err != nil {
			return nil, err
		}
		store = s
		if c, ok := s.(io.Closer); ok {
			a.closers = append(a.closers, c)
		}
	}

	embedder := deps.Embedder
	if embedder == nil {
		e, err := newEmbedder(cfg.Embedder)
		if err != nil {
			a.Close()
			return nil, err
		}
		embedder = e
	}

	model := deps.LLM
	if model == nil {
		m, err := newLLM(cfg.LLM)
		if err != nil {
			a.Close()
			return nil, err
		}
		model = m
	}

	engine := deps.OCR
	if engine == nil {
		engine = ocr.NewTesseractEngine(
			ocr.WithBinary(cfg.OCR.Binary),
			ocr.WithLanguages(cfg.OCR.Languages),
		)
	}

	a.Discoverer = loader.NewDiscoverer(loader.Extensions{
		Code:  cfg.Corpus.CodeExtensions,
		Image: cfg.Corpus.ImageExtensions,
		PDF:   cfg.Corpus.PDFExtensions,
	})
	images := loader.NewImageLoader(engine)
	extractor := loader.NewMultiLoader(
		loader.NewTextLoader(),
		images,
		loader.NewPDFLoader(parser.NewPDFParser()),
	)
	splitter := usecases.NewTextSplitter(
		usecases.WithChunkSize(cfg.Chunker.Size),
		usecases.WithChunkOverlap(cfg.Chunker.OverlapSize()),
	)

	a.Index = usecases.NewEmbeddingIndex(store, embedder, cfg.VectorStore.Collection)
	a.Pipeline = usecases.NewIndexingPipeline(a.Discoverer, extractor, splitter, a.Index)
	a.Builds = usecases.NewBuildCoordinator(a.Pipeline, cfg.Corpus.Root, cfg.Corpus.DocsRoot())
	a.Query = usecases.NewQueryUseCase(a.Index, model,
		usecases.WithTopK(cfg.Query.TopK),
		usecases.WithExcerptLen(cfg.Query.ExcerptLen),
		usecases.WithMaxTokens(cfg.LLM.MaxTokens),
		usecases.WithAnswerLanguage(cfg.Query.Language),
		usecases.WithImageReader(images),
	)

	logger.Debug("wired store=%s embedder=%s llm=%s", cfg.VectorStore.Type, embedder.Identity(), cfg.LLM.Type)
	return a, nil
}

// Server returns the HTTP server for this application.
func (a *App) Server() *httpserver.Server {
	return httpserver.NewServer(a.Query, a.Builds, a.Config.Server.Addr, a.Config.Server.ImageDir, a.Config.Server.MaxUploadMB)
}

// WatchCorpus rebuilds the index whenever allow-listed files change, until
// ctx is done.
func (a *App) WatchCorpus(ctx context.Context) error {
	watcher, err := filewatcher.NewFSNotifyWatcher(a.Discoverer.Extensions())
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Stop()

	return usecases.NewAutoReindexer(watcher, a.Builds, a.Config.Server.Debounce()).Run(ctx, a.Config.Corpus.Root)
}

// BuildAndWait runs one build through the coordinator and blocks until it
// finishes or ctx is done.
func (a *App) BuildAndWait(ctx context.Context) error {
	a.Builds.Trigger(ctx)
	select {
	case <-a.Builds.Wait():
	case <-ctx.Done():
		return ctx.Err()
	}
	if st := a.Builds.Status(); st.Error != "" {
		return errors.New(st.Error)
	}
	return nil
}

// Close releases resources held by the store.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newVectorStore(cfg config.VectorStoreConfig) (ports.VectorStore, error) {
	switch cfg.Type {
	case "chroma":
		return vectordb.NewChromaStore(cfg.Chroma.URL), nil
	case "sqlite":
		s, err := vectordb.NewSQLiteStore(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	case "memory":
		return vectordb.NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}
}

func newEmbedder(cfg config.EmbedderConfig) (ports.EmbeddingService, error) {
	switch cfg.Type {
	case "ollama":
		return embedding.NewOllamaAdapter(cfg.Ollama.BaseURL, cfg.Ollama.Model), nil
	case "openai":
		key := config.APIKey(cfg.OpenAI.APIKeyEnv)
		if key == "" && cfg.OpenAI.BaseURL == "" {
			return nil, fmt.Errorf("embedder: %s is not set", cfg.OpenAI.APIKeyEnv)
		}
		return embedding.NewOpenAIAdapter(key, cfg.OpenAI.BaseURL, cfg.OpenAI.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Type)
	}
}

func newLLM(cfg config.LLMConfig) (ports.LLMService, error) {
	switch cfg.Type {
	case "anthropic":
		a, err := llm.NewAnthropicAdapter(llm.AnthropicConfig{
			APIKey:  config.APIKey(cfg.Anthropic.APIKeyEnv),
			BaseURL: cfg.Anthropic.BaseURL,
			Model:   cfg.Anthropic.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set %s)", err, cfg.Anthropic.APIKeyEnv)
		}
		return a, nil
	case "ollama":
		return llm.NewOllamaLLMAdapter(cfg.Ollama.BaseURL, cfg.Ollama.Model), nil
	case "openai":
		key := config.APIKey(cfg.OpenAI.APIKeyEnv)
		if key == "" && cfg.OpenAI.BaseURL == "" {
			return nil, fmt.Errorf("llm: %s is not set", cfg.OpenAI.APIKeyEnv)
		}
		return llm.NewOpenAIAdapter(key, cfg.OpenAI.BaseURL, cfg.OpenAI.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm type %q", cfg.Type)
	}
}
