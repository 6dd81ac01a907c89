package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/agentroot/agentroot/internal/config"
	"github.com/agentroot/agentroot/internal/embed"
	"github.com/agentroot/agentroot/internal/mcpserver"
	"github.com/agentroot/agentroot/internal/preflight"
	"github.com/agentroot/agentroot/internal/search"
	"github.com/agentroot/agentroot/internal/session"
	"github.com/agentroot/agentroot/internal/store"
	"github.com/agentroot/agentroot/internal/workflow"
)

func newServeCmd() *cobra.Command {
	var offline bool
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Start the MCP server, exposing search and index_status tools to an
MCP client over stdio. Stdout is reserved exclusively for JSON-RPC traffic --
all diagnostics go through the debug log file, never stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, offline, skipCheck)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (skip model download)")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip pre-flight system checks")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, offline, skipCheck bool) error {
	dataDir, err := dataDirFlag(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// MCP runs over stdio: preflight output must never reach stdout, so it's
	// discarded (io.Discard) instead of going to a terminal writer.
	if !skipCheck && preflight.NeedsCheck(dataDir) {
		checker := preflight.New(preflight.WithOffline(offline), preflight.WithOutput(io.Discard))
		results := checker.RunAll(ctx, filepath.Dir(dataDir))
		if checker.HasCriticalFailures(results) {
			return fmt.Errorf("system check failed: %s", checker.SummaryStatus(results))
		}
		if err := preflight.MarkPassed(dataDir); err != nil {
			slog.Debug("failed to mark preflight as passed", slog.String("error", err.Error()))
		}
	}

	cfg, err := config.Load(filepath.Dir(dataDir))
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

	provider := embed.ProviderStatic
	if !offline {
		provider = embed.ParseProvider(cfg.Embeddings.Provider)
	}
	embedder, err := embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model)
	if err != nil {
		slog.Warn("embedder init failed, falling back to static", slog.String("error", err.Error()))
		embedder, err = embed.NewEmbedder(ctx, embed.ProviderStatic, "")
		if err != nil {
			return fmt.Errorf("static embedder fallback: %w", err)
		}
	}
	defer embedder.Close()

	engine, err := search.NewEngine(s, embedder)
	if err != nil {
		return fmt.Errorf("build search engine: %w", err)
	}

	executor := workflow.NewExecutor(engine, &search.NoOpReranker{}, slog.Default())
	sessions := session.NewManager(s, 30*time.Minute)

	srv, err := mcpserver.NewServer(s, engine, executor, sessions, embedder, cfg)
	if err != nil {
		return fmt.Errorf("build mcp server: %w", err)
	}

	slog.Info("mcp_server_starting", slog.String("data_dir", dataDir))
	return srv.MCPServer().Run(ctx, &mcp.StdioTransport{})
}

// dataDirFlag resolves --data-dir, defaulting to ./.agentroot relative to
// the detected project root.
func dataDirFlag(cmd *cobra.Command) (string, error) {
	flag, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return "", err
	}
	if flag != "" {
		return flag, nil
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(root, ".agentroot"), nil
}
