package search

import (
	"context"

	"github.com/agentroot/agentroot/internal/store"
)

// BM25Search runs the lexical side of hybrid retrieval against the chunk FTS
// mirror and returns hits ordered best-first. SQLite's bm25() auxiliary
// function returns more-negative-is-better scores, so they are negated here
// before being handed to RRFFusion, which expects higher-is-better.
func BM25Search(ctx context.Context, s store.Store, query string, limit int) ([]*FTSRankedHit, error) {
	hits, err := s.SearchChunksFTS(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*FTSRankedHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, &FTSRankedHit{ChunkHash: h.ChunkHash, Score: -h.RawScore})
	}
	return out, nil
}
