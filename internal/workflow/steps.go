// Package workflow executes ordered retrieval plans: either an
// LLM-produced Plan or the deterministic fallback_workflow, run step by
// step over internal/search's Engine.
package workflow

import "github.com/agentroot/agentroot/internal/search"

// StepKind names one workflow step.
type StepKind string

const (
	StepBm25Search        StepKind = "bm25_search"
	StepVectorSearch      StepKind = "vector_search"
	StepHybridSearch      StepKind = "hybrid_search"
	StepGlossarySearch    StepKind = "glossary_search"
	StepBm25ChunkSearch   StepKind = "bm25_chunk_search"
	StepVectorChunkSearch StepKind = "vector_chunk_search"
	StepFilterMetadata    StepKind = "filter_metadata"
	StepMerge             StepKind = "merge"
	StepDeduplicate       StepKind = "deduplicate"
	StepRerank            StepKind = "rerank"
	StepLimit             StepKind = "limit"
)

// MergeStrategy selects how Merge combines the two most recent result
// lists on the executor's stack.
type MergeStrategy string

const (
	MergeRRF            MergeStrategy = "rrf"
	MergeWeightedUnion   MergeStrategy = "weighted_union"
)

// MaxRerankDocs caps how many results are handed to an external reranker
//; Rerank truncates its input to this before calling out.
const MaxRerankDocs = 40

// Step is one entry in a Plan. Only the fields relevant to Kind are read.
type Step struct {
	Kind StepKind

	// Search steps (Bm25Search, VectorSearch, HybridSearch, GlossarySearch,
	// Bm25ChunkSearch, VectorChunkSearch).
	Query string
	Limit int

	// GlossarySearch only.
	MinConfidence float64

	// FilterMetadata only.
	Predicates search.Predicates

	// Merge only.
	Strategy MergeStrategy

	// Rerank only.
	TopK int

	// Limit only.
	Count int
}

// Plan is an ordered list of steps, either produced by an LLM planner or by
// fallback_workflow, plus the planner's own account of itself.
type Plan struct {
	Steps           []Step
	Reasoning       string
	ExpectedResults int
	Complexity      string
}
