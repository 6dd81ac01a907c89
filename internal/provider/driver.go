package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentroot/agentroot/internal/aggregate"
	"github.com/agentroot/agentroot/internal/chunk"
	"github.com/agentroot/agentroot/internal/embed"
	"github.com/agentroot/agentroot/internal/metadata"
	"github.com/agentroot/agentroot/internal/store"
)

// Chunkers selects the chunker for a SourceItem by its declared content
// type, the way the coordinator's chunker switch did.
type Chunkers struct {
	Code     chunk.Chunker
	Markdown chunk.Chunker
}

func (c Chunkers) forItem(item SourceItem) chunk.Chunker {
	switch item.Metadata["content_type"] {
	case "markdown":
		return c.Markdown
	default:
		return c.Code
	}
}

// Driver runs the five-step ingestion sequence for every item a Provider
// lists: upsert content by hash, upsert the document
// row, chunk and embed when the content hash changed, and optionally run
// the metadata generator and directory/glossary aggregators.
type Driver struct {
	Store       store.Store
	Chunkers    Chunkers
	Pipeline    *embed.Pipeline
	Context     *embed.HybridContextGenerator // nil disables contextual enrichment
	Metadata    metadata.Generator            // nil disables metadata generation
	Directories *aggregate.DirectoryBuilder   // nil disables directory aggregation
	Glossary    *aggregate.GlossaryBuilder    // nil disables glossary linking
	Retry       embed.RetryConfig
	Logger      *slog.Logger
}

// Run lists every item a provider exposes and ingests each one. The
// provider's ListItems call and each item's ingestion are retried with
// exponential backoff; a listing that still fails ends the run with an
// error, and an item that still fails is recorded as failed. A single
// item's failure never aborts the run: failures are recorded and skipped,
// not propagated.
func (d *Driver) Run(ctx context.Context, p Provider, collection string, cfg ListConfig) (*RunReport, error) {
	start := time.Now()
	logger := d.logger()
	report := &RunReport{}

	var items []SourceItem
	listErr := embed.DownloadWithRetry(ctx, d.retryConfig(), func() error {
		var err error
		items, err = p.ListItems(ctx, cfg)
		return err
	})
	if listErr != nil {
		return nil, fmt.Errorf("provider %s: list_items: %w", p.ProviderType(), listErr)
	}

	for _, item := range items {
		itemStart := time.Now()
		outcome, reason, err := d.ingestWithRetry(ctx, collection, item)
		if err != nil {
			logger.Warn("ingest failed", "uri", item.URI, "error", err)
			report.record(item, OutcomeFailed, err.Error(), time.Since(itemStart))
			continue
		}
		report.record(item, outcome, reason, time.Since(itemStart))
	}

	if d.Directories != nil {
		if _, err := d.Directories.Build(ctx, collection); err != nil {
			logger.Warn("directory aggregation failed", "collection", collection, "error", err)
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (d *Driver) ingestWithRetry(ctx context.Context, collection string, item SourceItem) (Outcome, string, error) {
	var outcome Outcome
	var reason string
	err := embed.DownloadWithRetry(ctx, d.retryConfig(), func() error {
		var innerErr error
		outcome, reason, innerErr = d.ingest(ctx, collection, item)
		return innerErr
	})
	return outcome, reason, err
}

// ingest performs the five ingestion steps for a single item.
func (d *Driver) ingest(ctx context.Context, collection string, item SourceItem) (Outcome, string, error) {
	if err := d.Store.InsertContent(ctx, item.Hash, item.Content); err != nil {
		return OutcomeFailed, "", fmt.Errorf("insert_content: %w", err)
	}

	existing, err := d.Store.GetDocument(ctx, collection, item.URI)
	if err != nil {
		return OutcomeFailed, "", fmt.Errorf("get_document: %w", err)
	}

	now := time.Now()
	doc := &store.Document{
		Collection: collection,
		Path:       item.URI,
		Title:      item.Title,
		Hash:       item.Hash,
		CreatedAt:  now,
		ModifiedAt: now,
		Active:     true,
		SourceType: item.SourceType,
	}
	if existing != nil {
		doc.CreatedAt = existing.CreatedAt
		doc.Metadata = existing.Metadata
	}
	unchanged := existing != nil && existing.Hash == item.Hash
	if unchanged {
		doc.ModifiedAt = existing.ModifiedAt
	}

	if _, err := d.Store.UpsertDocument(ctx, doc); err != nil {
		return OutcomeFailed, "", fmt.Errorf("upsert_document: %w", err)
	}

	if unchanged {
		return OutcomeSkipped, "content unchanged", nil
	}

	chunks, err := d.chunkAndEmbed(ctx, item)
	if err != nil {
		return OutcomeFailed, "", fmt.Errorf("chunk_and_embed: %w", err)
	}

	if d.Metadata != nil {
		if err := d.generateMetadata(ctx, collection, item); err != nil {
			d.logger().Warn("metadata generation failed, continuing without it", "uri", item.URI, "error", err)
		}
	}

	if d.Glossary != nil && len(chunks) > 0 {
		md, _ := d.Store.DocumentsByContentHash(ctx, item.Hash)
		if len(md) > 0 && md[0].Metadata != nil {
			if err := d.Glossary.Link(ctx, md[0].Metadata.Concepts, chunks); err != nil {
				d.logger().Warn("glossary linking failed", "uri", item.URI, "error", err)
			}
		}
	}

	return OutcomeIndexed, "", nil
}

func (d *Driver) chunkAndEmbed(ctx context.Context, item SourceItem) ([]*store.SemanticChunk, error) {
	chunker := d.Chunkers.forItem(item)
	if chunker == nil {
		return nil, nil
	}
	raw, err := chunker.Chunk(ctx, &chunk.FileInput{
		Path:     item.URI,
		Content:  []byte(item.Content),
		Language: item.Metadata["language"],
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	chunks := chunk.ToSemanticChunks(item.Hash, raw)
	if err := d.Store.ReplaceDocumentChunks(ctx, item.Hash, chunks); err != nil {
		return nil, err
	}

	if d.Pipeline == nil {
		return chunks, nil
	}

	pchunks := embed.ToPipelineChunks(chunks)
	if d.Context != nil {
		docContext := embed.ExtractDocumentContext(item.URI, chunks)
		for i, c := range chunks {
			genCtx, err := d.Context.GenerateContext(ctx, c, docContext)
			if err == nil {
				pchunks[i] = embed.ApplyContext(pchunks[i], genCtx)
			}
		}
	}

	if err := d.Pipeline.Run(ctx, pchunks, false); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (d *Driver) generateMetadata(ctx context.Context, collection string, item SourceItem) error {
	gctx := metadata.GenerationContext{
		Language:      item.Metadata["language"],
		FileExtension: item.Metadata["content_type"],
		Collection:    collection,
		ModifiedAt:    time.Now(),
	}
	md, err := d.Metadata.Generate(ctx, item.URI, item.Content, gctx)
	if err != nil || md == nil {
		return err
	}
	return d.Store.SetDocumentMetadata(ctx, collection, item.URI, md)
}

func (d *Driver) retryConfig() embed.RetryConfig {
	if d.Retry == (embed.RetryConfig{}) {
		return embed.DefaultRetryConfig()
	}
	return d.Retry
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
