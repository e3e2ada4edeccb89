package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ispasdani/k2ide/internal/core/ports/driven"
)

// Ensure CachedEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*CachedEmbedding)(nil)

// CachedEmbedding wraps an EmbeddingService with an LRU cache for document
// embeddings, so re-ingesting unchanged chunks skips the provider.
// Queries always go to the provider.
type CachedEmbedding struct {
	inner driven.EmbeddingService
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedding wraps inner with a cache of size entries.
// size <= 0 returns inner unchanged.
func NewCachedEmbedding(inner driven.EmbeddingService, size int) driven.EmbeddingService {
	if size <= 0 {
		return inner
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedEmbedding{inner: inner, cache: cache}
}

// cacheKey hashes the model with the text so a model switch never hits stale vectors
func (c *CachedEmbedding) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Model() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed serves cached vectors and sends only the misses to the provider, in one batch.
func (c *CachedEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		if j >= len(fresh) {
			break
		}
		results[idx] = fresh[j]
		c.cache.Add(c.cacheKey(texts[idx]), fresh[j])
	}
	return results, nil
}

func (c *CachedEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return c.inner.EmbedQuery(ctx, query)
}

func (c *CachedEmbedding) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *CachedEmbedding) Model() string {
	return c.inner.Model()
}

func (c *CachedEmbedding) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}

// Close purges the cache and closes the wrapped service
func (c *CachedEmbedding) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

// Len returns the number of cached vectors
func (c *CachedEmbedding) Len() int {
	return c.cache.Len()
}
