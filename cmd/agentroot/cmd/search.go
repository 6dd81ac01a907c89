package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentroot/agentroot/internal/config"
	"github.com/agentroot/agentroot/internal/embed"
	"github.com/agentroot/agentroot/internal/search"
	"github.com/agentroot/agentroot/internal/store"
)

type searchOptions struct {
	limit       int
	detail      string
	collections []string
	format      string
	bm25Only    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed collections from the shell",
		Long: `Search runs hybrid search (BM25 + semantic, fused with RRF) against an
existing store, the same retrieval path the MCP "search" tool uses.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&opts.detail, "detail", "L1", "Result detail level: L0, L1, or L2")
	cmd.Flags().StringSliceVarP(&opts.collections, "collection", "c", nil, "Filter by collection name (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.bm25Only, "bm25-only", false, "Use keyword search only (skip semantic search)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	dataDir, err := dataDirFlag(cmd)
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(filepath.Join(dataDir, "store.db"))
	if err != nil {
		return fmt.Errorf("open store (run 'agentroot serve' at least once to create it): %w", err)
	}
	defer s.Close()
	if err := s.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	// Query-side only: the static embedder's dimensions must match whatever
	// model built the index, or vector search degrades to BM25 silently via
	// Engine's model-mismatch handling. --bm25-only sidesteps this entirely.
	embedder, err := embed.NewEmbedder(ctx, embed.ProviderStatic, "")
	if err != nil {
		return fmt.Errorf("static embedder: %w", err)
	}
	defer embedder.Close()

	engine, err := search.NewEngine(s, embedder)
	if err != nil {
		return fmt.Errorf("build search engine: %w", err)
	}

	searchOpts := search.Options{
		Limit:       opts.limit,
		Detail:      store.DetailLevel(opts.detail),
		Collections: opts.collections,
	}

	var results []*search.ScoredResult
	if opts.bm25Only {
		results, err = engine.SearchBM25(ctx, query, searchOpts)
	} else {
		results, err = engine.Search(ctx, query, searchOpts)
	}
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return printResultsText(cmd, results)
}

func printResultsText(cmd *cobra.Command, results []*search.ScoredResult) error {
	out := cmd.OutOrStdout()
	if len(results) == 0 {
		_, err := fmt.Fprintln(out, "no results")
		return err
	}
	for i, r := range results {
		path := ""
		collection := ""
		if r.Document != nil {
			path = r.Document.Path
			collection = r.Document.Collection
		}
		if _, err := fmt.Fprintf(out, "%d. [%s] %s (score %.4f)\n", i+1, collection, path, r.Score); err != nil {
			return err
		}
		if r.Chunk != nil && r.Chunk.Text != "" {
			snippet := r.Chunk.Text
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			if _, err := fmt.Fprintf(out, "   %s\n", strings.ReplaceAll(snippet, "\n", " ")); err != nil {
				return err
			}
		}
	}
	return nil
}
