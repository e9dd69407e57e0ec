// Package vector provides text embedding backends and vector utilities used
// by the semantic scorer.
package vector

import (
	"context"
)

const (
	// DefaultEmbeddingDimensions is the size of vectors produced by the hashing embedder.
	DefaultEmbeddingDimensions = 768

	// DefaultCacheSize is the number of embeddings kept by the LRU cache.
	DefaultCacheSize = 4096
)

// Embedder defines the interface for creating vector embeddings from text.
type Embedder interface {
	// CreateEmbedding converts text into a vector representation.
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// CreateEmbedding calls f.
func (f EmbedderFunc) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
