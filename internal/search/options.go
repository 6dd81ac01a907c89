package search

import (
	"sort"
	"strings"
)

// Score adjustment constants for rerank-stage path heuristics. The literal
// boost formula in ApplyBoosts only specifies the /tests/ path penalty;
// these are additional signal a Rerank step may apply when no external
// reranker is configured.
const (
	TestFilePenalty   = 0.5
	InternalPathBoost = 1.3
	CmdPathPenalty    = 0.6
)

// Predicates is a metadata filter for the FilterMetadata workflow step.
// Empty fields are not applied. Multiple fields AND together.
type Predicates struct {
	ContentType string   // "", "code", "docs"
	Language    string   // e.g. "go"
	SymbolType  string   // e.g. "function"
	Scopes      []string // path-prefix allowlist, OR within the list
}

// Empty reports whether p has no predicates set, i.e. filtering is a no-op.
func (p Predicates) Empty() bool {
	return p.ContentType == "" && p.ContentType != "all" && p.Language == "" &&
		p.SymbolType == "" && len(p.Scopes) == 0
}

// FilterFunc checks if a result matches filter criteria.
type FilterFunc func(result *ScoredResult) bool

// ApplyFilters filters results by AND-ing every predicate in p. It never
// mutates results; the caller (the FilterMetadata step) is responsible for
// the "skip if this would remove >=100% of results" safety check against
// the returned slice's length.
func ApplyFilters(results []*ScoredResult, p Predicates) []*ScoredResult {
	if p.Empty() {
		return results
	}

	filters := buildFilters(p)
	if len(filters) == 0 {
		return results
	}

	filtered := make([]*ScoredResult, 0, len(results))
	for _, r := range results {
		if matchesAllFilters(r, filters) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func buildFilters(p Predicates) []FilterFunc {
	var filters []FilterFunc

	if p.ContentType != "" && p.ContentType != "all" {
		filters = append(filters, contentTypeFilter(p.ContentType))
	}
	if p.Language != "" {
		filters = append(filters, languageFilter(p.Language))
	}
	if p.SymbolType != "" {
		filters = append(filters, symbolTypeFilter(p.SymbolType))
	}
	if len(p.Scopes) > 0 {
		filters = append(filters, scopeFilter(p.Scopes))
	}

	return filters
}

func matchesAllFilters(result *ScoredResult, filters []FilterFunc) bool {
	for _, f := range filters {
		if !f(result) {
			return false
		}
	}
	return true
}

func contentTypeFilter(filter string) FilterFunc {
	return func(r *ScoredResult) bool {
		if r.Chunk == nil {
			return false
		}
		switch filter {
		case "code":
			return r.Chunk.Language != ""
		case "docs":
			return r.Chunk.Language == ""
		default:
			return true
		}
	}
}

func languageFilter(lang string) FilterFunc {
	return func(r *ScoredResult) bool {
		if r.Chunk == nil {
			return false
		}
		return r.Chunk.Language == lang
	}
}

func symbolTypeFilter(symbolType string) FilterFunc {
	return func(r *ScoredResult) bool {
		if r.Chunk == nil {
			return false
		}
		return string(r.Chunk.Type) == symbolType
	}
}

// NormalizeScope strips leading and trailing slashes for consistent prefix matching.
func NormalizeScope(scope string) string {
	return strings.Trim(scope, "/")
}

func scopeFilter(scopes []string) FilterFunc {
	normalized := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if n := NormalizeScope(s); n != "" {
			normalized = append(normalized, n+"/")
		}
	}
	if len(normalized) == 0 {
		return func(*ScoredResult) bool { return true }
	}

	return func(r *ScoredResult) bool {
		if r.Document == nil {
			return false
		}
		filePath := NormalizeScope(r.Document.Path) + "/"
		for _, scope := range normalized {
			if strings.HasPrefix(filePath, scope) {
				return true
			}
		}
		return false
	}
}

// ApplyTestFilePenalty deprioritizes test files, which otherwise often
// outrank real implementations on keyword density alone (mock methods
// repeat the signatures under test). Re-sorts by adjusted score.
func ApplyTestFilePenalty(results []*ScoredResult) []*ScoredResult {
	for _, r := range results {
		if r.Document != nil && IsTestFile(r.Document.Path) {
			r.Score *= TestFilePenalty
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// IsTestFile reports whether a path looks like a Go, JS/TS, or Python test file.
func IsTestFile(filePath string) bool {
	if strings.HasSuffix(filePath, "_test.go") {
		return true
	}
	if strings.Contains(filePath, ".test.") || strings.Contains(filePath, ".spec.") {
		return true
	}
	fileName := filePath
	if idx := strings.LastIndex(filePath, "/"); idx >= 0 {
		fileName = filePath[idx+1:]
	}
	if strings.HasPrefix(fileName, "test_") && strings.HasSuffix(fileName, ".py") {
		return true
	}
	if strings.HasSuffix(fileName, "_test.py") {
		return true
	}
	if strings.Contains(filePath, "/test/") || strings.Contains(filePath, "/tests/") {
		return true
	}
	if strings.HasPrefix(filePath, "test/") || strings.HasPrefix(filePath, "tests/") {
		return true
	}
	if strings.Contains(filePath, "/__tests__/") || strings.HasPrefix(filePath, "__tests__/") {
		return true
	}
	return false
}

// ApplyPathBoost boosts internal/ implementation paths and penalizes cmd/
// wrapper paths, countering multi-query consensus bias toward thin CLI
// wrappers that appear in every sub-query. Re-sorts by adjusted score.
func ApplyPathBoost(results []*ScoredResult) []*ScoredResult {
	for _, r := range results {
		if r.Document == nil {
			continue
		}
		path := r.Document.Path
		if IsImplementationPath(path) {
			r.Score *= InternalPathBoost
		}
		if IsWrapperPath(path) {
			r.Score *= CmdPathPenalty
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// IsImplementationPath reports whether a path is implementation code (internal/).
func IsImplementationPath(filePath string) bool {
	return strings.HasPrefix(filePath, "internal/") || strings.Contains(filePath, "/internal/")
}

// IsWrapperPath reports whether a path is CLI wrapper code (cmd/).
func IsWrapperPath(filePath string) bool {
	return strings.HasPrefix(filePath, "cmd/") || strings.Contains(filePath, "/cmd/")
}
