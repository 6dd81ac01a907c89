package search

import (
	"context"
	"fmt"
)

// SearchBM25 runs lexical-only search: the Bm25Search / Bm25ChunkSearch
// workflow steps. It shares hydrate/ApplyBoosts with Search
// so results from either entry point are shaped identically.
func (e *Engine) SearchBM25(ctx context.Context, query string, opts Options) ([]*ScoredResult, error) {
	opts = opts.withDefaults()
	hits, err := BM25Search(ctx, e.store, query, opts.Limit*4)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	fused := e.fusion.Fuse(hits, nil, opts.Weights)
	return e.finish(ctx, fused, opts)
}

// SearchVector runs semantic-only search: the VectorSearch / VectorChunkSearch
// workflow steps. Returns an empty result set (not an error)
// when no embedder is available, so callers can degrade gracefully.
func (e *Engine) SearchVector(ctx context.Context, query string, opts Options) ([]*ScoredResult, error) {
	opts = opts.withDefaults()
	if !e.embedder.Available(ctx) {
		return nil, nil
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	idx, err := e.denseIndexFor(ctx, e.embedder.ModelName(), e.embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("dense index: %w", err)
	}
	hits, err := idx.Search(ctx, vec, opts.Limit*4)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	fused := e.fusion.Fuse(nil, hits, opts.Weights)
	return e.finish(ctx, fused, opts)
}

// finish runs the shared post-fusion pipeline (hydrate, boosts, limit) a
// single-source search still needs, factored out of Search so SearchBM25
// and SearchVector don't duplicate it.
func (e *Engine) finish(ctx context.Context, fused []*FusedResult, opts Options) ([]*ScoredResult, error) {
	if len(fused) > opts.Limit*3 {
		fused = fused[:opts.Limit*3]
	}
	results, err := e.hydrate(ctx, fused, opts.Collections)
	if err != nil {
		return nil, err
	}
	collections, err := e.collectionIndex(ctx)
	if err != nil {
		return nil, err
	}
	ApplyBoosts(results, collections)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// GlossaryMinConfidence filters out concept matches whose normalized FTS
// rank score falls below this floor by default.
const GlossaryMinConfidence = 0.0

// SearchGlossary implements the GlossarySearch workflow step: it matches
// query against concept terms (store.SearchConceptsFTS), then retrieves the
// chunks linked to each matching concept (store.ChunksForConcept), ranking
// by the concept's own FTS rank.
func (e *Engine) SearchGlossary(ctx context.Context, query string, limit int, minConfidence float64) ([]*ScoredResult, error) {
	if limit <= 0 {
		limit = 20
	}
	concepts, err := e.store.SearchConceptsFTS(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("glossary search: %w", err)
	}

	var fused []*FusedResult
	for rank, c := range concepts {
		confidence := 1.0 / float64(rank+1)
		if confidence < minConfidence {
			continue
		}
		hashes, err := e.store.ChunksForConcept(ctx, c.ConceptID)
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			fused = append(fused, &FusedResult{
				ChunkHash: h,
				RRFScore:  1.0 / float64(DefaultRRFConstant+rank+1),
				BM25Rank:  rank + 1,
			})
		}
	}

	results, err := e.hydrate(ctx, fused, nil)
	if err != nil {
		return nil, err
	}
	collections, err := e.collectionIndex(ctx)
	if err != nil {
		return nil, err
	}
	ApplyBoosts(results, collections)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
