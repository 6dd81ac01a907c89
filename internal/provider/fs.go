package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentroot/agentroot/internal/gitignore"
	"github.com/agentroot/agentroot/internal/scanner"
	"github.com/agentroot/agentroot/internal/store"
)

// FSProvider lists and fetches files from a local directory tree, skipping
// gitignored paths, binary files, and anything scanner doesn't classify as
// code or markdown -- the one Provider every ingestion driver needs, with
// repo/web/pdf/db providers as additive future work.
type FSProvider struct {
	maxFileSize int64
}

// NewFSProvider returns an FSProvider. maxFileSize <= 0 uses scanner's own
// default cap.
func NewFSProvider(maxFileSize int64) *FSProvider {
	return &FSProvider{maxFileSize: maxFileSize}
}

func (p *FSProvider) ProviderType() string { return "filesystem" }

func (p *FSProvider) ListItems(ctx context.Context, cfg ListConfig) ([]SourceItem, error) {
	root := cfg.Root
	if root == "" {
		root = "."
	}
	matcher := gitignore.New()
	_ = matcher.AddFromFile(filepath.Join(root, ".gitignore"), root)

	var items []SourceItem
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries, don't abort the whole walk
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel, false) {
			return nil
		}
		if gitignore.MatchesAnyPattern(rel, cfg.ExcludePatterns) {
			return nil
		}
		if len(cfg.IncludePatterns) > 0 && !gitignore.MatchesAnyPattern(rel, cfg.IncludePatterns) {
			return nil
		}
		item, fetchErr := p.readItem(path, rel)
		if fetchErr != nil {
			return nil // unreadable/oversized/binary: skip, don't fail the listing
		}
		if item == nil {
			return nil
		}
		items = append(items, *item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (p *FSProvider) FetchItem(_ context.Context, uri string) (SourceItem, error) {
	item, err := p.readItem(uri, uri)
	if err != nil {
		return SourceItem{}, err
	}
	if item == nil {
		return SourceItem{}, fmt.Errorf("provider: %s is not an indexable file", uri)
	}
	return *item, nil
}

func (p *FSProvider) readItem(absPath, relPath string) (*SourceItem, error) {
	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, nil
	}
	maxSize := p.maxFileSize
	if maxSize <= 0 {
		maxSize = scanner.DefaultMaxFileSize
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("provider: %s exceeds max file size", relPath)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	if isBinary(raw) {
		return nil, nil
	}

	language := scanner.DetectLanguage(relPath)
	contentType := scanner.DetectContentType(language)
	if contentType != scanner.ContentTypeCode && contentType != scanner.ContentTypeMarkdown {
		return nil, nil
	}

	content := string(raw)
	item := NewSourceItem(relPath, filepath.Base(relPath), content, store.SourceTypeFile, map[string]string{
		"language":     language,
		"content_type": string(contentType),
	})
	return &item, nil
}

func isBinary(content []byte) bool {
	n := len(content)
	if n > 8000 {
		n = 8000
	}
	return strings.IndexByte(string(content[:n]), 0) >= 0
}
