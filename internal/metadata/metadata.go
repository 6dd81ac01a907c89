// Package metadata generates LLM-style document metadata: title, summary,
// keywords, category, intent, concepts, difficulty, suggested queries.
// Every generator degrades to a deterministic fallback that never fails, so
// ingestion is never blocked on metadata.
package metadata

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/agentroot/agentroot/internal/store"
)

// MaxContentTokens bounds how much of a document is fed to a generator,
// approximated as whitespace-delimited words.
const MaxContentTokens = 2048

// GenerationContext carries the side information a Generator may use beyond
// the raw content.
type GenerationContext struct {
	SourceType        store.SourceType
	Language          string
	FileExtension     string
	Collection        string
	ProviderConfig    map[string]string
	CreatedAt         time.Time
	ModifiedAt        time.Time
	ExistingStructure string // e.g. sibling headings, for consistency across a directory
}

// Generator produces DocumentMetadata for a document's content. Generate
// must never be the sole path to a result: callers fall back to
// DeterministicFallback on any error.
type Generator interface {
	Generate(ctx context.Context, path, content string, gctx GenerationContext) (*store.DocumentMetadata, error)
	Available(ctx context.Context) bool
	ModelName() string
	Close() error
}

// DeterministicGenerator never calls out to an LLM; it is the always-on
// fallback path and can also be used standalone (e.g. FallbackOnly config).
type DeterministicGenerator struct{}

func NewDeterministicGenerator() *DeterministicGenerator { return &DeterministicGenerator{} }

func (g *DeterministicGenerator) Generate(_ context.Context, path, content string, gctx GenerationContext) (*store.DocumentMetadata, error) {
	return DeterministicFallback(path, content, gctx), nil
}

func (g *DeterministicGenerator) Available(context.Context) bool { return true }
func (g *DeterministicGenerator) ModelName() string               { return "deterministic-fallback" }
func (g *DeterministicGenerator) Close() error                    { return nil }

// HybridGenerator prefers an LLM-backed generator when configured and
// available, falling back to the deterministic path on any error, timeout,
// or invalid output.
type HybridGenerator struct {
	llm      Generator // nil when unconfigured
	fallback *DeterministicGenerator
}

func NewHybridGenerator(llm Generator) *HybridGenerator {
	return &HybridGenerator{llm: llm, fallback: NewDeterministicGenerator()}
}

func (h *HybridGenerator) Generate(ctx context.Context, path, content string, gctx GenerationContext) (*store.DocumentMetadata, error) {
	if h.llm != nil && h.llm.Available(ctx) {
		md, err := h.llm.Generate(ctx, path, Truncate(content, gctx), gctx)
		if err == nil && md != nil {
			return md, nil
		}
	}
	return h.fallback.Generate(ctx, path, content, gctx)
}

func (h *HybridGenerator) Available(ctx context.Context) bool {
	return h.fallback.Available(ctx) || (h.llm != nil && h.llm.Available(ctx))
}

func (h *HybridGenerator) ModelName() string {
	if h.llm != nil {
		return h.llm.ModelName() + "+fallback"
	}
	return h.fallback.ModelName()
}

func (h *HybridGenerator) Close() error {
	if h.llm != nil {
		return h.llm.Close()
	}
	return nil
}

// Truncate applies a content-shape-aware truncation strategy before the
// content is handed to an LLM-backed generator.
func Truncate(content string, gctx GenerationContext) string {
	switch {
	case gctx.Language == "" && looksLikeMarkdown(gctx.FileExtension):
		return truncateMarkdown(content)
	case gctx.Language != "":
		return truncateCode(content)
	default:
		return truncateGeneric(content)
	}
}

func looksLikeMarkdown(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == ".md" || ext == ".markdown" || ext == ".mdx"
}

// truncateMarkdown keeps every heading line plus the first paragraph under
// each, capped at MaxContentTokens words total.
func truncateMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	words := 0
	afterHeading := false // no paragraph taken yet under the last heading
	inParagraph := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		isHeading := strings.HasPrefix(trimmed, "#")
		if isHeading {
			out = append(out, line)
			afterHeading = true
			inParagraph = false
			continue
		}
		if trimmed == "" {
			if inParagraph {
				afterHeading = false // first paragraph ended
				inParagraph = false
			}
			continue
		}
		if afterHeading {
			out = append(out, line)
			words += len(strings.Fields(line))
			inParagraph = true
		}
		if words >= MaxContentTokens {
			break
		}
	}
	return strings.Join(out, "\n")
}

// truncateCode keeps signature-shaped lines (declarations) plus immediately
// preceding doc comments, approximating a structural outline.
func truncateCode(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	words := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isSignatureLine(trimmed) {
			if i > 0 {
				prev := strings.TrimSpace(lines[i-1])
				if strings.HasPrefix(prev, "//") || strings.HasPrefix(prev, "#") || strings.HasPrefix(prev, "*") {
					out = append(out, lines[i-1])
				}
			}
			out = append(out, line)
			words += len(strings.Fields(line))
		}
		if words >= MaxContentTokens {
			break
		}
	}
	if len(out) == 0 {
		return truncateGeneric(content)
	}
	return strings.Join(out, "\n")
}

var signatureKeywords = []string{"func ", "def ", "class ", "struct ", "interface ", "type ", "fn ", "function ", "export "}

func isSignatureLine(line string) bool {
	for _, kw := range signatureKeywords {
		if strings.HasPrefix(line, kw) {
			return true
		}
	}
	return false
}

// truncateGeneric takes a head and tail window, the fallback shape for
// content with no recognizable structure.
func truncateGeneric(content string) string {
	words := strings.Fields(content)
	if len(words) <= MaxContentTokens {
		return content
	}
	half := MaxContentTokens / 2
	head := strings.Join(words[:half], " ")
	tail := strings.Join(words[len(words)-half:], " ")
	return head + "\n...\n" + tail
}

// DeterministicFallback computes DocumentMetadata with no external calls.
// This must always succeed.
func DeterministicFallback(path, content string, gctx GenerationContext) *store.DocumentMetadata {
	title := titleFromFilename(path)
	summary := firstParagraph(content)
	keywords := topKeywords(content, 8)
	category := categoryFromExtension(filepath.Ext(path), gctx.Language)
	concepts := capitalizedTerms(content, 12)

	return &store.DocumentMetadata{
		SemanticTitle:    title,
		Summary:          summary,
		Keywords:         keywords,
		Category:         category,
		Difficulty:       "intermediate",
		Concepts:         concepts,
		GeneratedAt:      gctx.ModifiedAt,
		GeneratingModel:  "deterministic-fallback",
		SuggestedQueries: nil,
	}
}

func titleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	return strings.TrimSpace(base)
}

func firstParagraph(content string) string {
	for _, para := range strings.Split(content, "\n\n") {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			trimmed = strings.TrimLeft(trimmed, "# ")
		}
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "is": true, "are": true, "was": true, "were": true, "be": true,
	"this": true, "that": true, "it": true, "as": true, "by": true, "from": true,
}

var wordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_]*`)

func topKeywords(content string, n int) []string {
	freq := map[string]int{}
	for _, w := range wordPattern.FindAllString(content, -1) {
		lw := strings.ToLower(w)
		if len(lw) < 3 || stopWords[lw] {
			continue
		}
		freq[lw]++
	}
	type kv struct {
		word  string
		count int
	}
	ordered := make([]kv, 0, len(freq))
	for w, c := range freq {
		ordered = append(ordered, kv{w, c})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].word < ordered[j].word
	})
	if len(ordered) > n {
		ordered = ordered[:n]
	}
	out := make([]string, len(ordered))
	for i, kv := range ordered {
		out[i] = kv.word
	}
	return out
}

var extCategories = map[string]string{
	".go": "source", ".py": "source", ".js": "source", ".ts": "source",
	".tsx": "source", ".jsx": "source", ".rs": "source", ".java": "source",
	".md": "documentation", ".mdx": "documentation", ".markdown": "documentation",
	".yaml": "configuration", ".yml": "configuration", ".json": "configuration",
	".toml": "configuration",
}

func categoryFromExtension(ext, language string) string {
	if c, ok := extCategories[strings.ToLower(ext)]; ok {
		return c
	}
	if language != "" {
		return "source"
	}
	return "documentation"
}

// capitalizedTerms extracts candidate glossary concepts: bare words of at
// least two characters starting with an uppercase letter, deduplicated,
// capped at n, in order of first appearance.
func capitalizedTerms(content string, n int) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range wordPattern.FindAllString(content, -1) {
		if len(w) < 2 {
			continue
		}
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			continue
		}
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) >= n {
			break
		}
	}
	return out
}
