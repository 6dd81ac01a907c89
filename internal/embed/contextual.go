package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentroot/agentroot/internal/config"
	"github.com/agentroot/agentroot/internal/store"
)

// ContextGenerator produces a short situating sentence for a chunk before it
// is embedded (the "contextual retrieval enrichment" supplement). A chunk
// read out of context embeds poorly; prefixing it with where it lives and
// what it defines measurably improves recall.
type ContextGenerator interface {
	// GenerateContext returns a 1-2 sentence context for chunk, given the
	// document-level context produced by ExtractDocumentContext. Returns
	// ("", nil) when no enrichment applies.
	GenerateContext(ctx context.Context, chunk *store.SemanticChunk, docContext string) (string, error)

	// GenerateBatch generates context for every chunk of one document in one
	// call, so an LLM-backed implementation can exploit prompt caching.
	GenerateBatch(ctx context.Context, chunks []*store.SemanticChunk, docContext string) ([]string, error)

	Available(ctx context.Context) bool
	ModelName() string
	Close() error
}

// PatternContextGenerator derives context from structural signals already
// present on the chunk (breadcrumb, type, language) without calling out to
// an LLM. It is always available and is the fallback every hybrid generator
// degrades to.
type PatternContextGenerator struct {
	cfg config.ContextualConfig
}

// NewPatternContextGenerator returns a pattern-based generator.
func NewPatternContextGenerator(cfg config.ContextualConfig) *PatternContextGenerator {
	return &PatternContextGenerator{cfg: cfg}
}

func (p *PatternContextGenerator) GenerateContext(_ context.Context, chunk *store.SemanticChunk, docContext string) (string, error) {
	if chunk == nil {
		return "", nil
	}
	// RCA-015: code chunks read fine on their own; only prefix them when the
	// operator explicitly opted in, since the prefix dilutes embedding
	// quality on small models otherwise.
	if chunk.Language != "" && !p.cfg.CodeChunks {
		return "", nil
	}

	var parts []string
	if docContext != "" {
		parts = append(parts, docContext)
	}
	if chunk.Breadcrumb != "" {
		parts = append(parts, fmt.Sprintf("Defines: %s %s", chunk.Type, chunk.Breadcrumb))
	}
	if chunk.Language != "" {
		parts = append(parts, fmt.Sprintf("Language: %s", chunk.Language))
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, ". ") + ".", nil
}

func (p *PatternContextGenerator) GenerateBatch(ctx context.Context, chunks []*store.SemanticChunk, docContext string) ([]string, error) {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		s, err := p.GenerateContext(ctx, c, docContext)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (p *PatternContextGenerator) Available(context.Context) bool { return true }
func (p *PatternContextGenerator) ModelName() string              { return "pattern-based" }
func (p *PatternContextGenerator) Close() error                   { return nil }

// HybridContextGenerator prefers an LLM-backed generator when one is wired
// in and available, falling back to pattern-based generation on any error,
// timeout, or when llm is nil (FallbackOnly / no LLM configured).
type HybridContextGenerator struct {
	llm     ContextGenerator // nil when FallbackOnly or unconfigured
	pattern *PatternContextGenerator
}

// NewHybridContextGenerator wires an optional LLM generator in front of a
// pattern-based fallback. Passing a nil llm makes this equivalent to
// pattern-only generation.
func NewHybridContextGenerator(llm ContextGenerator, cfg config.ContextualConfig) *HybridContextGenerator {
	return &HybridContextGenerator{llm: llm, pattern: NewPatternContextGenerator(cfg)}
}

func (h *HybridContextGenerator) GenerateContext(ctx context.Context, chunk *store.SemanticChunk, docContext string) (string, error) {
	if h.llm != nil && h.llm.Available(ctx) {
		if s, err := h.llm.GenerateContext(ctx, chunk, docContext); err == nil && s != "" {
			return s, nil
		}
	}
	return h.pattern.GenerateContext(ctx, chunk, docContext)
}

func (h *HybridContextGenerator) GenerateBatch(ctx context.Context, chunks []*store.SemanticChunk, docContext string) ([]string, error) {
	if h.llm != nil && h.llm.Available(ctx) {
		if out, err := h.llm.GenerateBatch(ctx, chunks, docContext); err == nil {
			return out, nil
		}
	}
	return h.pattern.GenerateBatch(ctx, chunks, docContext)
}

func (h *HybridContextGenerator) Available(ctx context.Context) bool {
	return h.pattern.Available(ctx) || (h.llm != nil && h.llm.Available(ctx))
}

func (h *HybridContextGenerator) ModelName() string {
	if h.llm != nil {
		return h.llm.ModelName() + "+pattern"
	}
	return h.pattern.ModelName()
}

func (h *HybridContextGenerator) Close() error {
	if h.llm != nil {
		return h.llm.Close()
	}
	return nil
}

// ExtractDocumentContext builds the document-level context shared across all
// of a document's chunks: the file path, plus up to 5 breadcrumbs from
// module/import-shaped chunks (package declarations, markdown section
// headers) to orient the reader.
func ExtractDocumentContext(path string, chunks []*store.SemanticChunk) string {
	if path == "" {
		return ""
	}
	headers := []string{fmt.Sprintf("File: %s", path)}
	for _, c := range chunks {
		if c.Type == store.ChunkTypeImport || c.Type == store.ChunkTypeModule {
			if c.Breadcrumb != "" {
				headers = append(headers, "- "+c.Breadcrumb)
			}
		}
		if len(headers) >= 6 {
			headers = append(headers, "...")
			break
		}
	}
	return strings.Join(headers, "\n")
}

// ApplyContext prepends generatedContext to pc's embedding text. Called with
// an empty generatedContext, it returns pc unchanged.
func ApplyContext(pc PipelineChunk, generatedContext string) PipelineChunk {
	if generatedContext == "" {
		return pc
	}
	pc.Text = generatedContext + "\n\n" + pc.Text
	return pc
}
