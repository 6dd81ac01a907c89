// Package provider lists and fetches source items for ingestion and drives them through content storage, chunking, embedding, and
// the optional metadata/aggregate enrichment stages.
package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/agentroot/agentroot/internal/store"
)

// SourceItem is one unit of content a Provider can list and fetch,
// content-addressed by the sha256 of its bytes so the driver can tell an
// unchanged item from a modified one without re-embedding it.
type SourceItem struct {
	URI        string
	Title      string
	Content    string
	Hash       string
	SourceType store.SourceType
	Metadata   map[string]string
}

// HashContent returns the sha256 hex digest of content, the value every
// SourceItem.Hash must carry.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NewSourceItem builds a SourceItem with Hash populated from content.
func NewSourceItem(uri, title, content string, sourceType store.SourceType, metadata map[string]string) SourceItem {
	return SourceItem{
		URI:        uri,
		Title:      title,
		Content:    content,
		Hash:       HashContent(content),
		SourceType: sourceType,
		Metadata:   metadata,
	}
}

// ListConfig narrows what a Provider.ListItems call should return. Fields a
// given provider doesn't understand are ignored.
type ListConfig struct {
	Root            string
	IncludePatterns []string
	ExcludePatterns []string
}

// Provider is an ingestible source of content: a local filesystem tree, a
// git repository, a wiki, a database table. The contract is
// list_items/fetch_item/provider_type.
type Provider interface {
	ProviderType() string
	ListItems(ctx context.Context, cfg ListConfig) ([]SourceItem, error)
	FetchItem(ctx context.Context, uri string) (SourceItem, error)
}

// Outcome buckets one item's ingestion result.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ItemResult records what happened to one SourceItem during a Run.
type ItemResult struct {
	URI     string
	Outcome Outcome
	Reason  string
	Elapsed time.Duration
}

// RunReport summarizes a full provider ingestion pass.
type RunReport struct {
	Items    []ItemResult
	Indexed  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

func (r *RunReport) record(item SourceItem, outcome Outcome, reason string, elapsed time.Duration) {
	r.Items = append(r.Items, ItemResult{URI: item.URI, Outcome: outcome, Reason: reason, Elapsed: elapsed})
	switch outcome {
	case OutcomeIndexed:
		r.Indexed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}
