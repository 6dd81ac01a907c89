package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentroot/agentroot/internal/aggregate"
	"github.com/agentroot/agentroot/internal/chunk"
	"github.com/agentroot/agentroot/internal/config"
	"github.com/agentroot/agentroot/internal/embed"
	"github.com/agentroot/agentroot/internal/metadata"
	"github.com/agentroot/agentroot/internal/provider"
	"github.com/agentroot/agentroot/internal/store"
)

func newIndexCmd() *cobra.Command {
	var collection string
	var offline bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Ingest a local directory into the store",
		Long: `index walks a directory with the filesystem provider and runs it
through the ingestion driver: chunk, embed, and aggregate, skipping files
whose content hash hasn't changed since the last run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runIndex(cmd.Context(), cmd, root, collection, offline)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", "docs", "Collection name to ingest into")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (skip model download)")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root, collection string, offline bool) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	dataDir, err := dataDirFlag(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		cfg = config.NewConfig()
	}

	s, err := store.NewSQLiteStore(filepath.Join(dataDir, "store.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	if err := s.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	if err := s.UpsertCollection(ctx, &store.Collection{Name: collection}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	embedProvider := embed.ProviderStatic
	if !offline {
		embedProvider = embed.ParseProvider(cfg.Embeddings.Provider)
	}
	rawEmbedder, err := embed.NewEmbedder(ctx, embedProvider, cfg.Embeddings.Model)
	if err != nil {
		slog.Warn("embedder init failed, falling back to static", slog.String("error", err.Error()))
		rawEmbedder, err = embed.NewEmbedder(ctx, embed.ProviderStatic, "")
		if err != nil {
			return fmt.Errorf("static embedder fallback: %w", err)
		}
	}
	defer rawEmbedder.Close()

	cachedEmbedder, err := embed.NewCachedEmbedder(rawEmbedder, s, 10_000)
	if err != nil {
		return fmt.Errorf("build cached embedder: %w", err)
	}

	driver := &provider.Driver{
		Store: s,
		Chunkers: provider.Chunkers{
			Code:     chunk.NewCodeChunker(),
			Markdown: chunk.NewMarkdownChunker(),
		},
		Pipeline:    embed.NewPipeline(cachedEmbedder, cfg.Embeddings.BatchSize),
		Context:     embed.NewHybridContextGenerator(nil, cfg.Contextual),
		Metadata:    metadata.NewDeterministicGenerator(),
		Directories: aggregate.NewDirectoryBuilder(s, nil),
		Glossary:    aggregate.NewGlossaryBuilder(s),
		Logger:      slog.Default(),
	}

	fsProvider := provider.NewFSProvider(100 << 20)
	listCfg := provider.ListConfig{Root: absRoot, ExcludePatterns: cfg.Paths.Exclude, IncludePatterns: cfg.Paths.Include}

	report, err := driver.Run(ctx, fsProvider, collection, listCfg)
	if err != nil {
		return fmt.Errorf("index run: %w", err)
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d, skipped %d, failed %d (%d items, %s)\n",
		report.Indexed, report.Skipped, report.Failed, len(report.Items), report.Duration)
	return err
}
