package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of text embeddings to keep.
// Repeated chunks across rebuilds of an unchanged corpus hit the
// cache instead of the API.
const DefaultCacheSize = 1000

// CachedTextEmbedder wraps a TextEmbedder with LRU caching. Rebuilds
// are drop-and-recreate, so unchanged corpora re-embed identical
// chunks; caching makes those rebuilds cheap and idempotent.
type CachedTextEmbedder struct {
	inner TextEmbedder
	cache *lru.Cache[string, []float32]
}

var _ TextEmbedder = (*CachedTextEmbedder)(nil)

// NewCachedTextEmbedder creates a cached embedder wrapping inner.
func NewCachedTextEmbedder(inner TextEmbedder, cacheSize int) *CachedTextEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedTextEmbedder{inner: inner, cache: cache}
}

// cacheKey hashes the chunk together with the model name so a model
// switch never serves stale vectors.
func (c *CachedTextEmbedder) cacheKey(chunk string) string {
	combined := chunk + "\x00" + c.inner.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// EmbedText returns the cached embedding if present, otherwise
// computes and caches it.
func (c *CachedTextEmbedder) EmbedText(ctx context.Context, chunk string) ([]float32, error) {
	key := c.cacheKey(chunk)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.EmbedText(ctx, chunk)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, vec)
	return vec, nil
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedTextEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelName returns the inner embedder's model identifier.
func (c *CachedTextEmbedder) ModelName() string { return c.inner.ModelName() }
