package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agentroot/agentroot/internal/search"
)

// Engine is the narrow slice of *search.Engine the executor needs,
// declared locally so this package depends on search's result shape, not
// its construction details.
type Engine interface {
	Search(ctx context.Context, query string, opts search.Options) ([]*search.ScoredResult, error)
	SearchBM25(ctx context.Context, query string, opts search.Options) ([]*search.ScoredResult, error)
	SearchVector(ctx context.Context, query string, opts search.Options) ([]*search.ScoredResult, error)
	SearchGlossary(ctx context.Context, query string, limit int, minConfidence float64) ([]*search.ScoredResult, error)
}

// ErrUnbalancedPlan is returned when execution ends with more than one
// unmerged result list still on the stack -- an LLM-authored plan that
// produced without ever merging.
var ErrUnbalancedPlan = fmt.Errorf("workflow: plan left unmerged result branches")

// Executor runs a Plan's steps in order against an Engine. Producer steps (the *Search steps) push a new
// result list; transform steps (FilterMetadata, Merge, Deduplicate,
// Rerank, Limit) act on the list(s) already on the stack.
type Executor struct {
	engine   Engine
	reranker search.Reranker
	logger   *slog.Logger
}

// NewExecutor returns an Executor. reranker may be search.NoOpReranker{} if
// no external reranker is configured.
func NewExecutor(engine Engine, reranker search.Reranker, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if reranker == nil {
		reranker = &search.NoOpReranker{}
	}
	return &Executor{engine: engine, reranker: reranker, logger: logger}
}

// Result is what Run returns: the final result list plus whether any step
// degraded and why.
type Result struct {
	Results  []*search.ScoredResult
	Degraded bool
	Reasons  []string
}

// Run executes plan sequentially. A failure in a required step
// (*Search, Merge, Deduplicate, Limit) terminates execution and returns
// Degraded=true with the error; a failure in an optional step (Rerank,
// FilterMetadata's unsafe-filter case) is absorbed and recorded in Reasons,
// execution continuing with the step's input unchanged.
func (ex *Executor) Run(ctx context.Context, plan Plan, opts search.Options) (*Result, error) {
	var stack [][]*search.ScoredResult
	res := &Result{}

	for _, step := range plan.Steps {
		switch step.Kind {
		case StepBm25Search, StepBm25ChunkSearch:
			list, err := ex.engine.SearchBM25(ctx, step.Query, searchOpts(opts, step.Limit))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", step.Kind, err)
			}
			stack = append(stack, list)

		case StepVectorSearch, StepVectorChunkSearch:
			list, err := ex.engine.SearchVector(ctx, step.Query, searchOpts(opts, step.Limit))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", step.Kind, err)
			}
			stack = append(stack, list)

		case StepHybridSearch:
			list, err := ex.engine.Search(ctx, step.Query, searchOpts(opts, step.Limit))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", step.Kind, err)
			}
			stack = append(stack, list)

		case StepGlossarySearch:
			list, err := ex.engine.SearchGlossary(ctx, step.Query, step.Limit, step.MinConfidence)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", step.Kind, err)
			}
			stack = append(stack, list)

		case StepFilterMetadata:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			filtered := search.ApplyFilters(top, step.Predicates)
			if len(top) > 0 && len(filtered) == 0 {
				// Safety against an LLM-invented filter that would wipe the
				// result list entirely: skip the step, keep top unchanged.
				res.Degraded = true
				res.Reasons = append(res.Reasons, "filter_metadata skipped: would remove all results")
				continue
			}
			stack[len(stack)-1] = filtered

		case StepMerge:
			if len(stack) < 2 {
				return nil, fmt.Errorf("workflow: merge requires at least two result lists, have %d", len(stack))
			}
			a, b := stack[len(stack)-2], stack[len(stack)-1]
			stack = stack[:len(stack)-2]
			stack = append(stack, merge(a, b, step.Strategy))

		case StepDeduplicate:
			if len(stack) == 0 {
				continue
			}
			stack[len(stack)-1] = deduplicate(stack[len(stack)-1])

		case StepRerank:
			if len(stack) == 0 {
				continue
			}
			reranked, err := ex.rerank(ctx, step, stack[len(stack)-1])
			if err != nil {
				ex.logger.Warn("rerank step failed, keeping unreranked order", "error", err)
				res.Degraded = true
				res.Reasons = append(res.Reasons, "rerank failed: "+err.Error())
				continue
			}
			stack[len(stack)-1] = reranked

		case StepLimit:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			count := step.Count
			if count <= 0 || count > len(top) {
				count = len(top)
			}
			stack[len(stack)-1] = top[:count]

		default:
			return nil, fmt.Errorf("workflow: unknown step kind %q", step.Kind)
		}
	}

	if len(stack) != 1 {
		return nil, ErrUnbalancedPlan
	}
	res.Results = stack[0]
	return res, nil
}

func searchOpts(base search.Options, limit int) search.Options {
	if limit > 0 {
		base.Limit = limit
	}
	return base
}

// merge combines two result lists by reciprocal-rank-of-rank (Rrf) or raw
// score sum (WeightedUnion), keyed by chunk hash.
func merge(a, b []*search.ScoredResult, strategy MergeStrategy) []*search.ScoredResult {
	const k = search.DefaultRRFConstant

	byHash := map[string]*search.ScoredResult{}
	score := map[string]float64{}

	apply := func(list []*search.ScoredResult) {
		for rank, r := range list {
			if r.Fused == nil {
				continue
			}
			hash := r.Fused.ChunkHash
			if _, ok := byHash[hash]; !ok {
				byHash[hash] = r
			}
			switch strategy {
			case MergeWeightedUnion:
				score[hash] += r.Score
			default: // MergeRRF
				score[hash] += 1.0 / float64(k+rank+1)
			}
		}
	}
	apply(a)
	apply(b)

	out := make([]*search.ScoredResult, 0, len(byHash))
	for hash, r := range byHash {
		r.Score = score[hash]
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Fused.ChunkHash < out[j].Fused.ChunkHash
	})
	return out
}

// deduplicate drops later occurrences of the same chunk hash, keeping the
// highest-scored (list is assumed sorted best-first, so the first
// occurrence wins).
func deduplicate(results []*search.ScoredResult) []*search.ScoredResult {
	seen := map[string]bool{}
	out := make([]*search.ScoredResult, 0, len(results))
	for _, r := range results {
		if r.Fused == nil {
			out = append(out, r)
			continue
		}
		if seen[r.Fused.ChunkHash] {
			continue
		}
		seen[r.Fused.ChunkHash] = true
		out = append(out, r)
	}
	return out
}

func (ex *Executor) rerank(ctx context.Context, step Step, results []*search.ScoredResult) ([]*search.ScoredResult, error) {
	if !ex.reranker.Available(ctx) || len(results) == 0 {
		return results, nil
	}
	input := results
	if len(input) > MaxRerankDocs {
		input = input[:MaxRerankDocs]
	}
	docs := make([]string, len(input))
	for i, r := range input {
		if r.Chunk != nil {
			docs[i] = r.Chunk.Text
		}
	}
	topK := step.TopK
	if topK <= 0 || topK > len(input) {
		topK = len(input)
	}
	ranked, err := ex.reranker.Rerank(ctx, step.Query, docs, topK)
	if err != nil {
		return nil, err
	}
	out := make([]*search.ScoredResult, 0, len(ranked))
	for _, rr := range ranked {
		if rr.Index < 0 || rr.Index >= len(input) {
			continue
		}
		r := input[rr.Index]
		r.Score = rr.Score
		out = append(out, r)
	}
	return out, nil
}
