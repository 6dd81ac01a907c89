package mcpserver

import (
	"github.com/agentroot/agentroot/internal/search"
	"github.com/agentroot/agentroot/internal/store"
)

// ToSearchResultOutput projects one engine result at the requested detail
// level into the tool's wire shape.
func ToSearchResultOutput(r *search.ScoredResult, detail store.DetailLevel) SearchResultOutput {
	out := SearchResultOutput{Score: r.Score}
	if r.Document != nil {
		out.DocID = r.Document.DocID()
		out.Path = r.Document.Path
		out.Collection = r.Document.Collection
	}
	if r.Fused != nil {
		out.InBothLists = r.Fused.InBothLists
	}
	if detail == store.DetailL0 {
		return out
	}
	if r.Chunk != nil {
		out.Snippet = r.Chunk.Text
	}
	if r.Document != nil && r.Document.Metadata != nil {
		out.Summary = r.Document.Metadata.Summary
		out.Keywords = r.Document.Metadata.Keywords
	}
	return out
}

// ToSearchResultOutputs projects a full result list.
func ToSearchResultOutputs(results []*search.ScoredResult, detail store.DetailLevel) []SearchResultOutput {
	out := make([]SearchResultOutput, 0, len(results))
	for _, r := range results {
		out = append(out, ToSearchResultOutput(r, detail))
	}
	return out
}
