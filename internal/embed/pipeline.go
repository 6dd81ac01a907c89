package embed

import (
	"context"

	"github.com/agentroot/agentroot/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// PipelineChunk is the minimal chunk shape the pipeline needs to embed and
// persist a batch.
type PipelineChunk struct {
	ChunkHash    string
	ContentHash  string
	Seq          int
	BytePosition int
	Text         string
}

// Pipeline computes and persists embeddings for a set of chunks in bounded
// batches, content-addressed so a re-ingested, unchanged chunk never pays
// for a provider call twice.
type Pipeline struct {
	embedder  *CachedEmbedder
	batchSize int
	sem       *semaphore.Weighted
}

// NewPipeline returns a Pipeline that runs at most MaxInFlightBatches
// batches of batchSize concurrently (golang.org/x/sync/errgroup + semaphore).
func NewPipeline(embedder *CachedEmbedder, batchSize int) *Pipeline {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Pipeline{
		embedder:  embedder,
		batchSize: batchSize,
		sem:       semaphore.NewWeighted(MaxInFlightBatches),
	}
}

// Run embeds every chunk not already cached (unless force is set) and
// returns once all of them are persisted to the store.
func (p *Pipeline) Run(ctx context.Context, chunks []PipelineChunk, force bool) error {
	batches := chunkInto(chunks, p.batchSize)

	g, ctx := errgroup.WithContext(ctx)
	for _, batch := range batches {
		batch := batch
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer p.sem.Release(1)
			return p.runBatch(ctx, batch, force)
		})
	}
	return g.Wait()
}

func (p *Pipeline) runBatch(ctx context.Context, batch []PipelineChunk, force bool) error {
	for _, c := range batch {
		if _, err := p.embedder.EmbedChunk(ctx, c.ChunkHash, c.ContentHash, c.Seq, c.BytePosition, c.Text, force); err != nil {
			return err
		}
	}
	return nil
}

func chunkInto(chunks []PipelineChunk, size int) [][]PipelineChunk {
	var out [][]PipelineChunk
	for size < len(chunks) {
		chunks, out = chunks[size:], append(out, chunks[:size:size])
	}
	out = append(out, chunks)
	return out
}

// ToPipelineChunks adapts store chunk rows into the pipeline's input shape.
func ToPipelineChunks(chunks []*store.SemanticChunk) []PipelineChunk {
	out := make([]PipelineChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, PipelineChunk{
			ChunkHash:    c.ChunkHash,
			ContentHash:  c.ContentHash,
			Seq:          c.Seq,
			BytePosition: c.BytePosition,
			Text:         c.LeadingTrivia + c.Text + c.TrailingTrivia,
		})
	}
	return out
}
