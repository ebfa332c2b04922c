package embed

import (
	"context"

	"github.com/cespare/xxhash/v2"

	"github.com/Nik0lay1/project-mind-mcp/internal/cache"
)

// DefaultEmbeddingCacheSize is the default number of embeddings kept.
const DefaultEmbeddingCacheSize = 1000

// CachedEmbedder wraps an Embedder with a bounded LRU so repeated query
// texts are embedded once.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.BoundedCache[uint64, []float32]
}

// NewCachedEmbedder wraps inner. A size below 1 selects
// DefaultEmbeddingCacheSize.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size < 1 {
		size = DefaultEmbeddingCacheSize
	}
	c, _ := cache.NewBoundedCache[uint64, []float32](size)
	return &CachedEmbedder{inner: inner, cache: c}
}

// cacheKey digests the model name and text so two models never share an
// entry.
func (c *CachedEmbedder) cacheKey(text string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(c.inner.ModelName())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(text)
	return d.Sum64()
}

// Embed returns the cached embedding or computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Put(key, vec)
	return vec, nil
}

// EmbedBatch looks up each text separately and embeds only the misses, in
// one call to the inner embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
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

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = vecs[j]
		c.cache.Put(c.cacheKey(texts[idx]), vecs[j])
	}
	return results, nil
}

// Stats reports the embedding cache counters.
func (c *CachedEmbedder) Stats() cache.CacheStats {
	return c.cache.Stats()
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// ModelName returns the inner embedder's model name.
func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}
