package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/agentroot/agentroot/internal/embed"
	"github.com/agentroot/agentroot/internal/store"
	"github.com/agentroot/agentroot/internal/telemetry"
)

// ErrNilDependency is returned by NewEngine when a required collaborator is nil.
var ErrNilDependency = fmt.Errorf("search: required dependency is nil")

// StrongSignalScore and StrongSignalMargin gate the dense-search shortcut:
// when the top BM25 hit already clears both thresholds over the runner-up,
// dense search is skipped entirely.
const (
	StrongSignalScore  = 0.85
	StrongSignalMargin = 0.15
)

// Options controls a single Search call.
type Options struct {
	Limit       int
	Detail      store.DetailLevel
	BM25Only    bool
	Weights     Weights
	SessionID   string
	Collections []string // empty means all collections
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Detail == "" {
		o.Detail = store.DetailL1
	}
	return o
}

// SeenLookup is satisfied by the session package: given a session ID, it
// returns the set of document/chunk hashes that session has already seen.
// Declared here, not imported from internal/session, to avoid a
// search<->session import cycle -- session depends on search's result
// shape, not the reverse.
type SeenLookup func(ctx context.Context, sessionID string) (docHashes, chunkHashes map[string]bool, err error)

// Engine is the retrieval component: it owns the fusion constant, the
// per-model dense indexes, and the boost/session/projection pipeline that
// runs over a fused result list.
type Engine struct {
	store    store.Store
	embedder embed.Embedder
	fusion   *RRFFusion
	stats    *telemetry.SearchStats
	logger   *slog.Logger
	seen     SeenLookup

	mu    sync.RWMutex
	dense map[string]*DenseIndex // keyed by model name
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithStats attaches a SearchStats recorder.
func WithStats(s *telemetry.SearchStats) Option {
	return func(e *Engine) { e.stats = s }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSeenLookup wires the session package's seen-set accessor in without
// an import cycle.
func WithSeenLookup(f SeenLookup) Option {
	return func(e *Engine) { e.seen = f }
}

// NewEngine validates its required dependencies and returns an Engine.
func NewEngine(s store.Store, embedder embed.Embedder, opts ...Option) (*Engine, error) {
	if s == nil || embedder == nil {
		return nil, ErrNilDependency
	}
	e := &Engine{
		store:    s,
		embedder: embedder,
		fusion:   NewRRFFusion(),
		stats:    telemetry.NewSearchStats(),
		logger:   slog.Default(),
		dense:    make(map[string]*DenseIndex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// denseIndexFor lazily builds (and caches) the in-process ANN/brute-force
// index for a model by loading every stored embedding for it. Rebuilding on
// first use, rather than maintaining it incrementally from ingest calls, is
// a deliberate simplification: this engine is read-mostly under a
// single-writer/many-reader model, so a rebuild on first query after an
// ingest is an acceptable cost and keeps the index always consistent with
// the store instead of requiring a separate invalidation channel.
func (e *Engine) denseIndexFor(ctx context.Context, model string, dimensions int) (*DenseIndex, error) {
	e.mu.RLock()
	idx, ok := e.dense[model]
	e.mu.RUnlock()
	if ok {
		return idx, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.dense[model]; ok {
		return idx, nil
	}

	vectors, err := e.store.AllEmbeddings(ctx, model)
	if err != nil {
		return nil, err
	}
	idx = NewDenseIndex(dimensions)
	for hash, vec := range vectors {
		if err := idx.Upsert(hash, vec); err != nil {
			e.logger.Warn("skipping embedding with bad dimensions", "chunk_hash", hash, "error", err)
		}
	}
	e.dense[model] = idx
	return idx, nil
}

// InvalidateDenseIndex drops the cached in-process index for model so the
// next Search rebuilds it from the store; callers invoke this after
// ingesting new embeddings for that model.
func (e *Engine) InvalidateDenseIndex(model string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.dense, model)
}

// Search runs the full retrieval pipeline: BM25, optional dense fan-out,
// RRF fusion, boosts, session-aware demotion, and detail-tier projection.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*ScoredResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search: empty query")
	}
	opts = opts.withDefaults()

	bm25Hits, err := BM25Search(ctx, e.store, query, opts.Limit*4)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	var denseHits []DenseHit
	usedANN := false
	skippedDense := false

	if !opts.BM25Only {
		if shortcut(bm25Hits) {
			skippedDense = true
		} else if e.embedder.Available(ctx) {
			vec, err := e.embedder.Embed(ctx, query)
			if err != nil {
				e.logger.Warn("query embedding failed, degrading to bm25-only", "error", err)
			} else {
				idx, err := e.denseIndexFor(ctx, e.embedder.ModelName(), e.embedder.Dimensions())
				if err != nil {
					e.logger.Warn("dense index unavailable, degrading to bm25-only", "error", err)
				} else {
					usedANN = idx.UsedANN()
					hits, err := idx.Search(ctx, vec, opts.Limit*4)
					if err != nil {
						e.logger.Warn("dense search failed, degrading to bm25-only", "error", err)
					} else {
						denseHits = hits
					}
				}
			}
		}
	}

	fused := e.fusion.Fuse(bm25Hits, denseHits, opts.Weights)
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

	if opts.SessionID != "" && e.seen != nil {
		docSeen, chunkSeen, err := e.seen(ctx, opts.SessionID)
		if err != nil {
			e.logger.Warn("session seen-set lookup failed, skipping demotion", "error", err)
		} else {
			ApplySessionDemotion(results, docSeen, chunkSeen)
		}
	}

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	if e.stats != nil {
		e.stats.RecordQuery(len(denseHits) > 0, usedANN, skippedDense, len(results) == 0)
	}

	return results, nil
}

// shortcut reports whether the dense-search shortcut applies: if the best
// BM25 hit clears StrongSignalScore and leads the runner-up by
// StrongSignalMargin, dense search is skipped. BM25 scores are unbounded,
// so this compares a normalized top score and a relative top-two gap
// rather than raw scores.
func shortcut(bm25 []*FTSRankedHit) bool {
	if len(bm25) < 2 {
		return false
	}
	top, second := bm25[0].Score, bm25[1].Score
	if top <= 0 {
		return false
	}
	margin := (top - second) / top
	normalizedTop := top / (top + float64(DefaultRRFConstant))
	return normalizedTop >= StrongSignalScore && margin >= StrongSignalMargin
}

func (e *Engine) hydrate(ctx context.Context, fused []*FusedResult, collectionFilter []string) ([]*ScoredResult, error) {
	allowed := make(map[string]bool, len(collectionFilter))
	for _, c := range collectionFilter {
		allowed[c] = true
	}

	out := make([]*ScoredResult, 0, len(fused))
	for _, f := range fused {
		chunk, err := e.store.GetChunk(ctx, f.ChunkHash)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			continue
		}
		// Chunk rows don't carry their owning collection/path directly;
		// that lookup lives on the document(s) whose content hash matches.
		// The most recently modified wins ties.
		docs, err := e.store.DocumentsByContentHash(ctx, chunk.ContentHash)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			continue
		}
		doc := docs[0]
		if len(allowed) > 0 && !allowed[doc.Collection] {
			continue
		}
		out = append(out, &ScoredResult{Fused: f, Chunk: chunk, Document: doc})
	}
	return out, nil
}

func (e *Engine) collectionIndex(ctx context.Context) (map[string]*store.Collection, error) {
	cols, err := e.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*store.Collection, len(cols))
	for _, c := range cols {
		out[c.Name] = c
	}
	return out, nil
}
