// Package config loads the application configuration from YAML or TOML,
// with secrets and a few deployment settings taken from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the file is read.
const (
	EnvCorpusRoot = "CODERAG_CORPUS_ROOT"
	EnvChromaURL  = "CODERAG_CHROMA_URL"
	EnvServerAddr = "CODERAG_ADDR"
)

// CorpusConfig locates the files to index.
type CorpusConfig struct {
	Root            string   `yaml:"root" toml:"root"`
	DocsDir         string   `yaml:"docs_dir" toml:"docs_dir"`
	CodeExtensions  []string `yaml:"code_extensions,omitempty" toml:"code_extensions,omitempty"`
	ImageExtensions []string `yaml:"image_extensions,omitempty" toml:"image_extensions,omitempty"`
	PDFExtensions   []string `yaml:"pdf_extensions,omitempty" toml:"pdf_extensions,omitempty"`
}

// DocsRoot resolves DocsDir against Root unless it is absolute.
func (c CorpusConfig) DocsRoot() string {
	if filepath.IsAbs(c.DocsDir) {
		return c.DocsDir
	}
	return filepath.Join(c.Root, c.DocsDir)
}

// ChunkerConfig configures the recursive text splitter. Sizes are characters.
type ChunkerConfig struct {
	Size int `yaml:"size" toml:"size"`
	// Overlap is nil when the key is absent. An explicit 0 turns overlap off.
	Overlap *int `yaml:"overlap,omitempty" toml:"overlap,omitempty"`
}

// OverlapSize returns the configured overlap, 0 when unset.
func (c ChunkerConfig) OverlapSize() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

// OllamaConfig points at an Ollama server.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Model   string `yaml:"model" toml:"model"`
}

// OpenAIConfig configures an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
	Model     string `yaml:"model" toml:"model"`
}

// EmbedderConfig selects the embedding provider: "ollama" or "openai".
type EmbedderConfig struct {
	Type   string       `yaml:"type" toml:"type"`
	Ollama OllamaConfig `yaml:"ollama" toml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai" toml:"openai"`
}

// ChromaConfig addresses a Chroma server.
type ChromaConfig struct {
	URL string `yaml:"url" toml:"url"`
}

// SQLiteConfig places the local vector database.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// VectorStoreConfig selects the store: "chroma", "sqlite" or "memory".
type VectorStoreConfig struct {
	Type       string       `yaml:"type" toml:"type"`
	Collection string       `yaml:"collection" toml:"collection"`
	Chroma     ChromaConfig `yaml:"chroma" toml:"chroma"`
	SQLite     SQLiteConfig `yaml:"sqlite" toml:"sqlite"`
}

// AnthropicConfig configures the Messages API client.
type AnthropicConfig struct {
	BaseURL   string `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
	Model     string `yaml:"model" toml:"model"`
}

// LLMConfig selects the answering model: "anthropic", "ollama" or "openai".
type LLMConfig struct {
	Type      string          `yaml:"type" toml:"type"`
	MaxTokens int             `yaml:"max_tokens,omitempty" toml:"max_tokens,omitempty"`
	Anthropic AnthropicConfig `yaml:"anthropic" toml:"anthropic"`
	Ollama    OllamaConfig    `yaml:"ollama" toml:"ollama"`
	OpenAI    OpenAIConfig    `yaml:"openai" toml:"openai"`
}

// OCRConfig configures the tesseract binary.
type OCRConfig struct {
	Binary    string `yaml:"binary" toml:"binary"`
	Languages string `yaml:"languages" toml:"languages"`
}

// QueryConfig tunes retrieval and answer presentation.
type QueryConfig struct {
	TopK       int    `yaml:"top_k" toml:"top_k"`
	ExcerptLen int    `yaml:"excerpt_len" toml:"excerpt_len"`
	Language   string `yaml:"language,omitempty" toml:"language,omitempty"`
}

// ServerConfig configures the HTTP surface and watch mode.
type ServerConfig struct {
	Addr          string `yaml:"addr" toml:"addr"`
	ImageDir      string `yaml:"image_dir" toml:"image_dir"`
	MaxUploadMB   int    `yaml:"max_upload_mb" toml:"max_upload_mb"`
	WatchDebounce string `yaml:"watch_debounce" toml:"watch_debounce"`
}

// Debounce parses WatchDebounce, falling back to two seconds.
func (c ServerConfig) Debounce() time.Duration {
	d, err := time.ParseDuration(c.WatchDebounce)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus      CorpusConfig      `yaml:"corpus" toml:"corpus"`
	Chunker     ChunkerConfig     `yaml:"chunker" toml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder" toml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store" toml:"vector_store"`
	LLM         LLMConfig         `yaml:"llm" toml:"llm"`
	OCR         OCRConfig         `yaml:"ocr" toml:"ocr"`
	Query       QueryConfig       `yaml:"query" toml:"query"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
}

// Load reads a config from path. A missing file yields defaults. The format
// is picked by extension: .toml is TOML, anything else YAML. A .env file in
// the working directory is loaded first if present; existing variables win.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &AppConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := unmarshal(path, data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func unmarshal(path string, data []byte, cfg *AppConfig) error {
	if isTOML(path) {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvCorpusRoot); v != "" {
		cfg.Corpus.Root = v
	}
	if v := os.Getenv(EnvChromaURL); v != "" {
		cfg.VectorStore.Chroma.URL = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		cfg.Server.Addr = v
	}
}

func applyDefaults(cfg *AppConfig) {
	setDefault(&cfg.Corpus.Root, ".")
	setDefault(&cfg.Corpus.DocsDir, "docs")

	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == nil {
		overlap := 200
		if overlap >= cfg.Chunker.Size {
			overlap = cfg.Chunker.Size / 4
		}
		cfg.Chunker.Overlap = &overlap
	}

	setDefault(&cfg.Embedder.Type, "ollama")
	setDefault(&cfg.Embedder.Ollama.BaseURL, "http://localhost:11434")
	setDefault(&cfg.Embedder.Ollama.Model, "nomic-embed-text")
	setDefault(&cfg.Embedder.OpenAI.APIKeyEnv, "OPENAI_API_KEY")
	setDefault(&cfg.Embedder.OpenAI.Model, "text-embedding-3-small")

	setDefault(&cfg.VectorStore.Type, "sqlite")
	setDefault(&cfg.VectorStore.Collection, "code_chunks")
	setDefault(&cfg.VectorStore.Chroma.URL, "http://localhost:8000")
	setDefault(&cfg.VectorStore.SQLite.Path, "./data")

	setDefault(&cfg.LLM.Type, "anthropic")
	setDefault(&cfg.LLM.Anthropic.APIKeyEnv, "ANTHROPIC_API_KEY")
	setDefault(&cfg.LLM.Anthropic.Model, "claude-3-5-sonnet-latest")
	setDefault(&cfg.LLM.Ollama.BaseURL, "http://localhost:11434")
	setDefault(&cfg.LLM.Ollama.Model, "llama3.2")
	setDefault(&cfg.LLM.OpenAI.APIKeyEnv, "OPENAI_API_KEY")
	setDefault(&cfg.LLM.OpenAI.Model, "gpt-4o-mini")

	setDefault(&cfg.OCR.Binary, "tesseract")
	setDefault(&cfg.OCR.Languages, "jpn+eng")

	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}
	if cfg.Query.ExcerptLen == 0 {
		cfg.Query.ExcerptLen = 200
	}

	setDefault(&cfg.Server.Addr, ":8080")
	setDefault(&cfg.Server.ImageDir, "static/images")
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 20
	}
	setDefault(&cfg.Server.WatchDebounce, "2s")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate rejects settings no component can run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Chunker.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunker.size must be positive, got %d", c.Chunker.Size))
	}
	if overlap := c.Chunker.OverlapSize(); overlap < 0 || overlap >= c.Chunker.Size {
		errs = append(errs, fmt.Errorf("chunker.overlap must be in [0, size), got %d", overlap))
	}
	if c.Query.TopK <= 0 {
		errs = append(errs, fmt.Errorf("query.top_k must be positive, got %d", c.Query.TopK))
	}
	if !oneOf(c.Embedder.Type, "ollama", "openai") {
		errs = append(errs, fmt.Errorf("unknown embedder.type %q", c.Embedder.Type))
	}
	if !oneOf(c.VectorStore.Type, "chroma", "sqlite", "memory") {
		errs = append(errs, fmt.Errorf("unknown vector_store.type %q", c.VectorStore.Type))
	}
	if !oneOf(c.LLM.Type, "anthropic", "ollama", "openai") {
		errs = append(errs, fmt.Errorf("unknown llm.type %q", c.LLM.Type))
	}
	if _, err := time.ParseDuration(c.Server.WatchDebounce); err != nil {
		errs = append(errs, fmt.Errorf("server.watch_debounce: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

// APIKey reads the secret named by envVar.
func APIKey(envVar string) string {
	return strings.TrimSpace(os.Getenv(envVar))
}
