package vector

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/localrivet/summbench/internal/util"
)

// Store persists embeddings across runs.
type Store interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, key string, embedding []float32) error
}

// CachedEmbedder memoizes an Embedder in memory and, optionally, in a Store.
// Reference summaries are embedded once per run even though every strategy
// scores against them.
type CachedEmbedder struct {
	base  Embedder
	cache *lru.Cache[string, []float32]
	store Store

	hits   func()
	misses func()
}

// NewCachedEmbedder wraps base with an LRU cache of size entries.
func NewCachedEmbedder(base Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{base: base, cache: cache, hits: func() {}, misses: func() {}}, nil
}

// WithStore adds a persistent second-level cache.
func (c *CachedEmbedder) WithStore(store Store) *CachedEmbedder {
	c.store = store
	return c
}

// OnLookup registers callbacks for cache hits and misses.
func (c *CachedEmbedder) OnLookup(hit, miss func()) *CachedEmbedder {
	if hit != nil {
		c.hits = hit
	}
	if miss != nil {
		c.misses = miss
	}
	return c
}

// CreateEmbedding returns the cached vector for text or computes it.
func (c *CachedEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := util.ContentHash(text)
	if v, ok := c.cache.Get(key); ok {
		c.hits()
		return v, nil
	}

	if c.store != nil {
		if v, ok, err := c.store.GetEmbedding(ctx, key); err == nil && ok {
			c.cache.Add(key, v)
			c.hits()
			return v, nil
		}
	}

	c.misses()
	v, err := c.base.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	if c.store != nil {
		// best effort
		_ = c.store.PutEmbedding(ctx, key, v)
	}
	return v, nil
}

// Len returns the number of cached embeddings.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}
