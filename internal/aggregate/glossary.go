package aggregate

import (
	"context"
	"regexp"
	"strings"

	"github.com/agentroot/agentroot/internal/store"
)

// MaxSnippetChars bounds the snippet stored alongside a concept_chunks link.
const MaxSnippetChars = 160

// GlossaryStore is the slice of store.Store the builder needs.
type GlossaryStore interface {
	UpsertConcept(ctx context.Context, term, snippet string) (int64, error)
	LinkConceptChunk(ctx context.Context, conceptID int64, chunkHash, snippet string) error
}

// GlossaryBuilder links a document's extracted concepts to the chunks whose text actually mentions
// them, normalizing each term so "Query Classifier" and "query-classifier"
// land on the same concepts row.
type GlossaryBuilder struct {
	store GlossaryStore
}

// NewGlossaryBuilder returns a builder over store.
func NewGlossaryBuilder(s GlossaryStore) *GlossaryBuilder {
	return &GlossaryBuilder{store: s}
}

// Link upserts concepts and their chunk links for one document's metadata
// concepts against its chunks. A concept with no matching chunk (rare: the
// term only appeared in the document's LLM-generated metadata, not its
// body) is still upserted so GlossarySearch can still find it by term.
func (g *GlossaryBuilder) Link(ctx context.Context, concepts []string, chunks []*store.SemanticChunk) error {
	for _, term := range concepts {
		normalized := NormalizeTerm(term)
		if normalized == "" {
			continue
		}

		snippet := ""
		for _, c := range chunks {
			if idx := findTermIndex(c.Text, term); idx >= 0 {
				snippet = snippetAround(c.Text, idx, len(term))
				break
			}
		}

		conceptID, err := g.store.UpsertConcept(ctx, normalized, snippet)
		if err != nil {
			return err
		}

		for _, c := range chunks {
			idx := findTermIndex(c.Text, term)
			if idx < 0 {
				continue
			}
			chunkSnippet := snippetAround(c.Text, idx, len(term))
			if err := g.store.LinkConceptChunk(ctx, conceptID, c.ChunkHash, chunkSnippet); err != nil {
				return err
			}
		}
	}
	return nil
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeTerm lowercases a concept term and collapses runs of
// non-alphanumeric characters to a single underscore (store.Concept.Term's
// documented invariant).
func NormalizeTerm(term string) string {
	lower := strings.ToLower(strings.TrimSpace(term))
	normalized := nonAlphanumeric.ReplaceAllString(lower, "_")
	return strings.Trim(normalized, "_")
}

func findTermIndex(text, term string) int {
	return strings.Index(strings.ToLower(text), strings.ToLower(term))
}

func snippetAround(text string, idx, termLen int) string {
	start := idx - MaxSnippetChars/2
	if start < 0 {
		start = 0
	}
	end := idx + termLen + MaxSnippetChars/2
	if end > len(text) {
		end = len(text)
	}
	snippet := strings.TrimSpace(text[start:end])
	if len(snippet) > MaxSnippetChars {
		snippet = snippet[:MaxSnippetChars]
	}
	return snippet
}
