package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records how many texts reach the wrapped embedder.
type countingEmbedder struct {
	*StaticEmbedder
	embedded int
	fail     error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	c.embedded++
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	c.embedded += len(texts)
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_Embed_HitsCache(t *testing.T) {
	// Given: a cached embedder over a counting embedder
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	// When: the same text is embedded twice
	first, err := c.Embed(ctx, "find the config loader")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "find the config loader")
	require.NoError(t, err)

	// Then: the inner embedder ran once
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.embedded)
	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCachedEmbedder_EmbedBatch_EmbedsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, "b")
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	require.Len(t, vecs, 3)
	assert.Equal(t, 3, inner.embedded)
	want, _ := NewStaticEmbedder().Embed(ctx, "c")
	assert.Equal(t, want, vecs[2])
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(), fail: errors.New("boom")}
	c := NewCachedEmbedder(inner, 10)

	_, err := c.Embed(context.Background(), "x")
	require.Error(t, err)

	inner.fail = nil
	_, err = c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.embedded)
}

func TestCachedEmbedder_DefaultsAndPassthrough(t *testing.T) {
	c := NewCachedEmbedder(NewStaticEmbedder(), 0)

	assert.Equal(t, DefaultEmbeddingCacheSize, c.Stats().Capacity)
	assert.Equal(t, StaticDimensions, c.Dimensions())
	assert.Equal(t, "static-hash", c.ModelName())
	assert.NoError(t, c.Close())
}
