package search

import (
	"strings"

	"github.com/agentroot/agentroot/internal/store"
)

// Boost multipliers applied in ApplyBoosts. These stack multiplicatively, in
// the order the function applies them.
const (
	DocumentationCollectionBoost = 1.5
	SourceCollectionPenalty      = 0.7
	TestPathPenalty              = 0.1
	DirectoryCoLocationBoost     = 1.15
	SessionSeenDemotion          = 0.3

	// ImportanceFloor/Ceiling clamp Document.Importance before it is used
	// as a multiplier, so a document with no link-graph data (importance
	// defaults to 1.0, see DESIGN.md) never boosts or penalizes a result.
	ImportanceFloor   = 1.0
	ImportanceCeiling = 10.0
)

// ScoredResult is a FusedResult annotated with the document and chunk it
// resolves to, after boosts have been applied and before detail-tier
// projection.
type ScoredResult struct {
	Fused    *FusedResult
	Chunk    *store.SemanticChunk
	Document *store.Document
	Score    float64

	// SessionDemoted records whether SessionSeenDemotion was applied, for
	// explain-data surfaces.
	SessionDemoted bool
}

// ApplyBoosts scales each result's RRF score by importance, collection
// type, and test-path penalty, re-sorts, then applies the
// directory co-location boost against that initial ranking's top 3 and
// re-sorts once more -- co-location is computed from the *boosted* ranking,
// not the raw fused one, matching the "after initial ranking" ordering.
func ApplyBoosts(results []*ScoredResult, collections map[string]*store.Collection) {
	for _, r := range results {
		score := r.Fused.RRFScore
		if r.Document != nil {
			importance := r.Document.Importance
			if importance < ImportanceFloor {
				importance = ImportanceFloor
			}
			if importance > ImportanceCeiling {
				importance = ImportanceCeiling
			}
			score *= importance

			if c := collections[r.Document.Collection]; c != nil && c.Documentation {
				score *= DocumentationCollectionBoost
			} else {
				score *= SourceCollectionPenalty
			}
			if isTestPath(r.Document.Path) {
				score *= TestPathPenalty
			}
		}
		r.Score = score
	}
	stableSortByScore(results)

	top := results
	if len(top) > 3 {
		top = top[:3]
	}
	topDirs := make(map[string]bool, len(top))
	for _, r := range top {
		if r.Document != nil {
			topDirs[dirOf(r.Document.Path)] = true
		}
	}
	for _, r := range results {
		if r.Document != nil && topDirs[dirOf(r.Document.Path)] {
			r.Score *= DirectoryCoLocationBoost
		}
	}
	stableSortByScore(results)
}

func isTestPath(path string) bool {
	return IsTestFile(path)
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

func stableSortByScore(results []*ScoredResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// ApplySessionDemotion multiplies the score of any result already present
// in session's seen-set by SessionSeenDemotion. seen is
// the set of document hashes (and, when chunk-scoped, chunk hashes) the
// session has already surfaced.
func ApplySessionDemotion(results []*ScoredResult, seenDocHashes, seenChunkHashes map[string]bool) {
	for _, r := range results {
		seen := false
		if r.Chunk != nil && seenChunkHashes[r.Chunk.ChunkHash] {
			seen = true
		}
		if r.Document != nil && seenDocHashes[r.Document.Hash] {
			seen = true
		}
		if seen {
			r.Score *= SessionSeenDemotion
			r.SessionDemoted = true
		}
	}
	stableSortByScore(results)
}
