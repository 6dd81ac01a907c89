package embed

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize bounds the transient in-process LRU layer sitting
// in front of the persistent, content-addressed store cache.
const DefaultEmbeddingCacheSize = 1000

// StoreCache is the persistent half of the content-addressed embedding
// cache: embeddings are looked up and stored by
// (chunk_hash, model), surviving process restarts. Implemented by
// internal/store.Store; declared here as the narrow interface this package
// actually needs, to avoid importing the whole store package's surface.
type StoreCache interface {
	GetEmbedding(ctx context.Context, chunkHash, model string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, contentHash string, seq, pos int, chunkHash, model string, vec []float32) error
	RegisterModel(ctx context.Context, model string, dimensions int) error
}

// CachedEmbedder wraps an Embedder with a two-tier cache: a small
// in-process LRU (hashicorp/golang-lru/v2) in front of the persistent,
// content-addressed store cache. In EmbedChunk, a cache hit in either tier
// skips the underlying provider call entirely; Embed and EmbedBatch are not
// cached and pass straight through to the inner embedder.
type CachedEmbedder struct {
	inner Embedder
	store StoreCache
	lru   *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with a size-bounded in-process LRU backed
// by store for persistence across restarts.
func NewCachedEmbedder(inner Embedder, store StoreCache, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultEmbeddingCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, store: store, lru: cache}, nil
}

// EmbedChunk embeds text for a specific chunk, checking the LRU then the
// persistent store cache (keyed by chunkHash+model) before calling the
// underlying provider. force bypasses both cache tiers.
func (c *CachedEmbedder) EmbedChunk(ctx context.Context, chunkHash, contentHash string, seq, pos int, text string, force bool) ([]float32, error) {
	model := c.inner.ModelName()
	key := chunkHash + "\x00" + model

	if !force {
		if vec, ok := c.lru.Get(key); ok {
			return vec, nil
		}
		if vec, ok, err := c.store.GetEmbedding(ctx, chunkHash, model); err == nil && ok {
			c.lru.Add(key, vec)
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	vec = normalizeVector(vec)

	if err := c.store.RegisterModel(ctx, model, len(vec)); err != nil {
		return nil, err
	}
	if err := c.store.PutEmbedding(ctx, contentHash, seq, pos, chunkHash, model, vec); err != nil {
		return nil, err
	}
	c.lru.Add(key, vec)
	return vec, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.inner.Embed(ctx, text)
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *CachedEmbedder) Dimensions() int             { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string           { return c.inner.ModelName() }
func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *CachedEmbedder) Close() error                { return c.inner.Close() }
func (c *CachedEmbedder) Inner() Embedder             { return c.inner }

var _ Embedder = (*CachedEmbedder)(nil)
