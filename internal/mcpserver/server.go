package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentroot/agentroot/internal/config"
	"github.com/agentroot/agentroot/internal/embed"
	"github.com/agentroot/agentroot/internal/search"
	"github.com/agentroot/agentroot/internal/session"
	"github.com/agentroot/agentroot/internal/store"
	"github.com/agentroot/agentroot/internal/workflow"
	"github.com/agentroot/agentroot/pkg/version"
)

// Server bridges MCP clients to the engine: hybrid search, workflow-planned
// retrieval, and session-aware query context.
type Server struct {
	mcp      *mcp.Server
	store    store.Store
	engine   *search.Engine
	executor *workflow.Executor
	sessions *session.Manager
	embedder embed.Embedder
	config   *config.Config
	logger   *slog.Logger

	mu sync.RWMutex
}

// NewServer creates a new MCP server over the given engine. executor and
// sessions may be nil -- the search tool falls back to the engine's own
// Search and skips session demotion, respectively.
func NewServer(s store.Store, engine *search.Engine, executor *workflow.Executor, sessions *session.Manager, embedder embed.Embedder, cfg *config.Config) (*Server, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("search engine is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	srv := &Server{
		store:    s,
		engine:   engine,
		executor: executor,
		sessions: sessions,
		embedder: embedder,
		config:   cfg,
		logger:   slog.Default(),
	}

	srv.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "agentroot",
			Version: version.Version,
		},
		nil,
	)
	srv.registerTools()
	return srv, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid BM25 + semantic search over the indexed collections. Use the workflow planner when available; falls back to the engine's own fused retrieval otherwise.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report store-wide counts (documents, chunks, collections) and whether the embedder is available.",
	}, s.mcpIndexStatusHandler)
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	detail := store.DetailLevel(in.Detail)
	if detail == "" {
		detail = store.DetailL1
	}

	opts := search.Options{
		Limit:       limit,
		Detail:      detail,
		SessionID:   in.SessionID,
		Collections: in.Collections,
	}

	results, err := s.runSearch(ctx, query, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{Results: ToSearchResultOutputs(results, detail)}
	return nil, out, nil
}

// runSearch prefers the workflow executor's heuristic fallback plan (so a
// query that looks lexical runs BM25-only, a natural-language one runs
// vector+rerank) and falls back to the engine's own Search when no executor
// is wired.
func (s *Server) runSearch(ctx context.Context, query string, opts search.Options) ([]*search.ScoredResult, error) {
	if s.executor == nil {
		return s.engine.Search(ctx, query, opts)
	}

	hasEmbeddings := s.embedder != nil && s.embedder.Available(ctx)
	plan := workflow.FallbackWorkflow(query, hasEmbeddings, opts.Limit)
	res, err := s.executor.Run(ctx, plan, opts)
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (*mcp.CallToolResult, IndexStatusOutput, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, IndexStatusOutput{}, MapError(err)
	}

	out := IndexStatusOutput{
		Documents:   stats.ActiveDocs,
		Chunks:      stats.Chunks,
		Collections: stats.Collections,
	}
	if s.embedder != nil {
		out.EmbeddingsEnabled = s.embedder.Available(ctx)
		out.EmbeddingModel = s.embedder.ModelName()
	}
	return nil, out, nil
}
