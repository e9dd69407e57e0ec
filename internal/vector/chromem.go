package vector

import (
	"fmt"

	"github.com/philippgille/chromem-go"
)

// Embedder backends
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config selects an embedding backend.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	CacheSize  int
}

// New builds the configured embedder wrapped in an LRU cache.
func New(cfg Config) (*CachedEmbedder, error) {
	var base Embedder
	switch cfg.Provider {
	case "", ProviderHash:
		base = NewHashEmbedder(cfg.Dimensions)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedder requires an API key")
		}
		base = NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case ProviderOllama:
		base = NewOllamaEmbedder(cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", cfg.Provider)
	}
	return NewCachedEmbedder(base, cfg.CacheSize)
}

// NewOpenAIEmbedder returns an embedder backed by the OpenAI embeddings API
// or a compatible endpoint when baseURL is set.
func NewOpenAIEmbedder(apiKey, model, baseURL string) Embedder {
	if model == "" {
		model = string(chromem.EmbeddingModelOpenAI3Small)
	}
	if baseURL == "" {
		return EmbedderFunc(chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(model)))
	}
	return EmbedderFunc(chromem.NewEmbeddingFuncOpenAICompat(baseURL, apiKey, model, nil))
}

// NewOllamaEmbedder returns an embedder backed by a local Ollama server.
// An empty baseURL selects Ollama's default address.
func NewOllamaEmbedder(model, baseURL string) Embedder {
	if model == "" {
		model = "nomic-embed-text"
	}
	return EmbedderFunc(chromem.NewEmbeddingFuncOllama(model, baseURL))
}
