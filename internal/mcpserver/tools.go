package mcpserver

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query to execute"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Detail      string   `json:"detail,omitempty" jsonschema:"result detail level: L0, L1 (default), or L2"`
	Collections []string `json:"collections,omitempty" jsonschema:"filter by collection name (OR logic)"`
	SessionID   string   `json:"session_id,omitempty" jsonschema:"session id for demotion of previously seen results"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of search results"`
}

// SearchResultOutput is one hydrated, projected search hit.
type SearchResultOutput struct {
	DocID       string   `json:"doc_id" jsonschema:"stable document identifier"`
	Path        string   `json:"path" jsonschema:"document path within its collection"`
	Collection  string   `json:"collection" jsonschema:"collection the document belongs to"`
	Score       float64  `json:"score" jsonschema:"relevance score"`
	Snippet     string   `json:"snippet,omitempty" jsonschema:"matched chunk text, present at detail L1+"`
	Summary     string   `json:"summary,omitempty" jsonschema:"document summary, present at detail L1+"`
	Keywords    []string `json:"keywords,omitempty" jsonschema:"document keywords, present at detail L1+"`
	InBothLists bool     `json:"in_both_lists,omitempty" jsonschema:"true if the result appeared in both keyword and semantic search"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput reports the store's aggregate state.
type IndexStatusOutput struct {
	Documents         int    `json:"documents"`
	Chunks            int    `json:"chunks"`
	Collections       int    `json:"collections"`
	EmbeddingsEnabled bool   `json:"embeddings_enabled"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`
}
