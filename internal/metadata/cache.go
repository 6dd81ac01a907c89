package metadata

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentroot/agentroot/internal/store"
)

// DefaultCacheSize bounds the in-process metadata cache, mirroring
// internal/embed's CachedEmbedder two-tier idiom.
const DefaultCacheSize = 500

// StoreLookup is the narrow slice of store.Store the cache needs to find an
// already-generated metadata row for a content hash, declared locally to
// avoid pulling in the whole Store surface.
type StoreLookup interface {
	DocumentsByContentHash(ctx context.Context, hash string) ([]*store.Document, error)
}

// CachedGenerator wraps a Generator with a cache keyed by
// "metadata:v1:"+content_hash. A hit, whether in the
// in-process LRU or a sibling document sharing the same content hash that
// already has metadata, is returned verbatim without calling the
// underlying generator.
type CachedGenerator struct {
	inner Generator
	store StoreLookup
	lru   *lru.Cache[string, *store.DocumentMetadata]
}

// NewCachedGenerator wraps inner with a size-bounded LRU backed by store's
// content-hash index for cross-process, cross-document reuse.
func NewCachedGenerator(inner Generator, store StoreLookup, size int) (*CachedGenerator, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *store.DocumentMetadata](size)
	if err != nil {
		return nil, err
	}
	return &CachedGenerator{inner: inner, store: store, lru: cache}, nil
}

// Generate returns cached metadata for contentHash if available, otherwise
// generates, caches, and returns a fresh value.
func (c *CachedGenerator) Generate(ctx context.Context, contentHash, path, content string, gctx GenerationContext) (*store.DocumentMetadata, error) {
	key := CacheKey(contentHash)
	if md, ok := c.lru.Get(key); ok {
		return md, nil
	}

	if docs, err := c.store.DocumentsByContentHash(ctx, contentHash); err == nil {
		for _, d := range docs {
			if d.Metadata != nil {
				c.lru.Add(key, d.Metadata)
				return d.Metadata, nil
			}
		}
	}

	md, err := c.inner.Generate(ctx, path, content, gctx)
	if err != nil {
		return nil, err
	}
	if md.GeneratedAt.IsZero() {
		md.GeneratedAt = time.Now()
	}
	c.lru.Add(key, md)
	return md, nil
}

// CacheKey builds the metadata cache key for a content hash.
func CacheKey(contentHash string) string {
	return "metadata:v1:" + contentHash
}
