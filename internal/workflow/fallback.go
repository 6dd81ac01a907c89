package workflow

import (
	"context"

	"github.com/agentroot/agentroot/internal/search"
)

// DefaultRerankTopK is how many of the reranked results fallback plans keep
// when a Rerank step is included.
const DefaultRerankTopK = 10

// FallbackWorkflow builds the deterministic plan used when no LLM planner
// is available (or the planner itself failed): classify the query with the
// pattern-based classifier and route it to the matching
// single-source plan, degrading unconditionally to BM25-only when
// hasEmbeddings is false.
func FallbackWorkflow(query string, hasEmbeddings bool, limit int) Plan {
	if limit <= 0 {
		limit = 20
	}

	if !hasEmbeddings {
		return Plan{
			Steps: []Step{
				{Kind: StepBm25Search, Query: query, Limit: limit},
				{Kind: StepLimit, Count: limit},
			},
			Reasoning:  "embeddings unavailable, degrading to bm25-only",
			Complexity: "simple",
		}
	}

	classifier := search.NewPatternClassifier()
	qt, _, _ := classifier.Classify(context.Background(), query)

	switch qt {
	case search.QueryTypeLexical:
		return Plan{
			Steps: []Step{
				{Kind: StepBm25Search, Query: query, Limit: limit},
				{Kind: StepLimit, Count: limit},
			},
			Reasoning:  "tokeny/technical query classified as lexical",
			Complexity: "simple",
		}
	case search.QueryTypeSemantic:
		return Plan{
			Steps: []Step{
				{Kind: StepVectorSearch, Query: query, Limit: limit},
				{Kind: StepRerank, Query: query, TopK: DefaultRerankTopK},
				{Kind: StepLimit, Count: limit},
			},
			Reasoning:  "natural-language query classified as semantic",
			Complexity: "moderate",
		}
	default:
		return Plan{
			Steps: []Step{
				{Kind: StepHybridSearch, Query: query, Limit: limit},
				{Kind: StepLimit, Count: limit},
			},
			Reasoning:  "mixed query, using hybrid retrieval",
			Complexity: "simple",
		}
	}
}
