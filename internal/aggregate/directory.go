// Package aggregate builds two derived views on top of the document/chunk
// store: per-directory rollups consumed by the directory co-location boost,
// and a normalized concept glossary consumed by GlossarySearch.
package aggregate

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/agentroot/agentroot/internal/store"
)

// MaxSummaryChars caps a directory's synthesized summary.
const MaxSummaryChars = 200

// Summarizer synthesizes a directory summary from its documents' own
// summaries, LLM-backed when available. Implementations must still leave
// DirectoryBuilder's deterministic path as the fallback on error.
type Summarizer interface {
	Summarize(ctx context.Context, collection, dirPath string, childSummaries []string) (string, error)
}

// DirectoryStore is the slice of store.Store the builder needs.
type DirectoryStore interface {
	ListActiveDocuments(ctx context.Context, collection string) ([]*store.Document, error)
	UpsertDirectory(ctx context.Context, d *store.Directory) error
}

// DirectoryBuilder computes directories(...) rows for a collection,
// bottom-up, from its active documents.
type DirectoryBuilder struct {
	store      DirectoryStore
	summarizer Summarizer // nil uses the deterministic fallback unconditionally
}

// NewDirectoryBuilder returns a builder. summarizer may be nil.
func NewDirectoryBuilder(s DirectoryStore, summarizer Summarizer) *DirectoryBuilder {
	return &DirectoryBuilder{store: s, summarizer: summarizer}
}

// Build recomputes every directory row for collection and upserts them.
// Directories are processed in descending depth order (bottom-up) so a
// future aggregation that wants child-directory context (not required by
// the current summary strategy) has it available.
func (b *DirectoryBuilder) Build(ctx context.Context, collection string) (int, error) {
	docs, err := b.store.ListActiveDocuments(ctx, collection)
	if err != nil {
		return 0, err
	}

	byDir := map[string][]*store.Document{}
	childDirs := map[string]map[string]bool{}
	for _, d := range docs {
		dir := dirOf(d.Path)
		byDir[dir] = append(byDir[dir], d)
		registerAncestors(dir, childDirs)
	}
	// Directories with no direct files but with child directories (pure
	// intermediate nodes) still get a row, with zero file_count.
	for dir := range childDirs {
		if _, ok := byDir[dir]; !ok {
			byDir[dir] = nil
		}
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool { return depthOf(dirs[i]) > depthOf(dirs[j]) })

	for _, dir := range dirs {
		row, err := b.buildOne(ctx, collection, dir, byDir[dir], childDirs[dir])
		if err != nil {
			return 0, err
		}
		if err := b.store.UpsertDirectory(ctx, row); err != nil {
			return 0, err
		}
	}
	return len(dirs), nil
}

func (b *DirectoryBuilder) buildOne(ctx context.Context, collection, dir string, docs []*store.Document, children map[string]bool) (*store.Directory, error) {
	langCounts := map[string]int{}
	catCounts := map[string]int{}
	var childSummaries []string
	conceptSet := map[string]bool{}

	for _, d := range docs {
		if d.Metadata != nil {
			if d.Metadata.Category != "" {
				catCounts[d.Metadata.Category]++
			}
			if s := firstSentence(d.Metadata.Summary); s != "" {
				childSummaries = append(childSummaries, s)
			}
			for _, c := range d.Metadata.Concepts {
				conceptSet[c] = true
			}
		}
		if lang := languageFromExtension(d.Path); lang != "" {
			langCounts[lang]++
		}
	}

	summary := strings.Join(childSummaries, " ")
	if b.summarizer != nil {
		if s, err := b.summarizer.Summarize(ctx, collection, dir, childSummaries); err == nil && s != "" {
			summary = s
		}
	}
	if len(summary) > MaxSummaryChars {
		summary = summary[:MaxSummaryChars]
	}

	concepts := make([]string, 0, len(conceptSet))
	for c := range conceptSet {
		concepts = append(concepts, c)
	}
	sort.Strings(concepts)

	return &store.Directory{
		Collection:       collection,
		Path:             dir,
		Depth:            depthOf(dir),
		FileCount:        len(docs),
		ChildDirCount:    len(children),
		Summary:          summary,
		DominantLanguage: topKey(langCounts),
		DominantCategory: topKey(catCounts),
		Concepts:         concepts,
	}, nil
}

// dirOf returns the directory portion of a document path, "" for a
// top-level file.
func dirOf(p string) string {
	d := path.Dir(path.Clean(p))
	if d == "." {
		return ""
	}
	return d
}

func depthOf(dir string) int {
	if dir == "" {
		return 0
	}
	return strings.Count(dir, "/") + 1
}

// registerAncestors marks dir as a child of each of its ancestor
// directories, so intermediate directories with no direct files still get
// a correct child_dir_count.
func registerAncestors(dir string, childDirs map[string]map[string]bool) {
	for dir != "" {
		parent := dirOf(dir)
		if childDirs[parent] == nil {
			childDirs[parent] = map[string]bool{}
		}
		childDirs[parent][dir] = true
		dir = parent
	}
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ".\n"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

func topKey(counts map[string]int) string {
	var best string
	var bestCount int
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

var extLanguages = map[string]string{
	".go": "go", ".py": "python", ".js": "javascript", ".ts": "typescript",
	".tsx": "typescript", ".jsx": "javascript", ".rs": "rust", ".java": "java",
}

func languageFromExtension(p string) string {
	ext := strings.ToLower(path.Ext(p))
	return extLanguages[ext]
}
