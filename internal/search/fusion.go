// Package search provides hybrid retrieval: BM25 lexical search, dense
// vector search, and reciprocal-rank fusion of the two, plus the boost,
// session-dedup, and detail-tier projection stages that run over the fused
// result list.
package search

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter:
// k=60 is the constant used by Azure AI Search, OpenSearch, and most
// production hybrid-search deployments.
const DefaultRRFConstant = 60

// FusedResult is a single chunk after RRF fusion of the BM25 and dense
// result lists.
type FusedResult struct {
	ChunkHash   string
	RRFScore    float64
	BM25Score   float64
	BM25Rank    int // 1-indexed, 0 if absent from the BM25 list
	VecScore    float64
	VecRank     int // 1-indexed, 0 if absent from the dense list
	InBothLists bool
}

// Weights scales each retrieval list's contribution to the fused score.
// The zero value (0, 0) is special-cased by Fuse to mean "no weighting" --
// the literal formula, score = sum(1/(k+rank)) -- so callers that don't
// care about weighting get the unweighted formula by default, and only pay
// for richer classifier-driven weighting when they explicitly ask for it.
type Weights struct {
	BM25     float64
	Semantic float64
}

// RRFFusion merges a BM25 result list and a dense result list by reciprocal
// rank. See DESIGN.md for why this defaults to the unweighted formula
// instead of an always-weighted one.
type RRFFusion struct {
	K int
}

// NewRRFFusion returns an RRFFusion using DefaultRRFConstant.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK returns an RRFFusion with an explicit k, falling back to
// DefaultRRFConstant if k is non-positive.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines bm25 and dense result lists (each assumed already sorted
// best-first) into a single ranked list. weights is optional: its zero
// value applies the unweighted spec formula; a non-zero field multiplies
// that list's contribution.
func (f *RRFFusion) Fuse(bm25 []*FTSRankedHit, dense []DenseHit, weights Weights) []*FusedResult {
	bw, sw := weights.BM25, weights.Semantic
	if bw == 0 {
		bw = 1.0
	}
	if sw == 0 {
		sw = 1.0
	}

	scores := make(map[string]*FusedResult)
	getOrCreate := func(chunkHash string) *FusedResult {
		if r, ok := scores[chunkHash]; ok {
			return r
		}
		r := &FusedResult{ChunkHash: chunkHash}
		scores[chunkHash] = r
		return r
	}

	for i, hit := range bm25 {
		rank := i + 1
		r := getOrCreate(hit.ChunkHash)
		r.BM25Score = hit.Score
		r.BM25Rank = rank
		r.RRFScore += bw / float64(f.K+rank)
	}
	for i, hit := range dense {
		rank := i + 1
		r := getOrCreate(hit.ChunkHash)
		r.VecScore = float64(hit.Score)
		r.VecRank = rank
		r.RRFScore += sw / float64(f.K+rank)
		if r.BM25Rank > 0 {
			r.InBothLists = true
		}
	}

	out := make([]*FusedResult, 0, len(scores))
	for _, r := range scores {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		if out[i].InBothLists != out[j].InBothLists {
			return out[i].InBothLists
		}
		if out[i].BM25Score != out[j].BM25Score {
			return out[i].BM25Score > out[j].BM25Score
		}
		return out[i].ChunkHash < out[j].ChunkHash
	})

	normalize(out)
	return out
}

func normalize(results []*FusedResult) {
	if len(results) == 0 {
		return
	}
	max := results[0].RRFScore
	if max <= 0 {
		return
	}
	for _, r := range results {
		r.RRFScore /= max
	}
}

// FTSRankedHit is a BM25 hit projected to a rank-ordered score suitable for
// fusion (higher Score is better, unlike the store's raw bm25() output
// where more negative is better -- see internal/search/bm25.go).
type FTSRankedHit struct {
	ChunkHash string
	Score     float64
}
