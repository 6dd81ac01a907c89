package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFSProvider_ListItemsSkipsIgnoredAndBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "README.md", "# hello\n")
	writeFile(t, root, "vendor/dep.go", "package dep\n")
	writeFile(t, root, ".gitignore", "vendor/\n")
	writeFile(t, root, "data.bin", "\x00\x01\x02binary")

	p := NewFSProvider(0)
	items, err := p.ListItems(context.Background(), ListConfig{Root: root})
	require.NoError(t, err)

	var uris []string
	for _, it := range items {
		uris = append(uris, it.URI)
	}
	assert.Contains(t, uris, "main.go")
	assert.Contains(t, uris, "README.md")
	assert.NotContains(t, uris, filepath.Join("vendor", "dep.go"))
	assert.NotContains(t, uris, "data.bin")
}

func TestFSProvider_FetchItemHashesContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	p := NewFSProvider(0)
	item, err := p.FetchItem(context.Background(), filepath.Join(root, "a.go"))
	require.NoError(t, err)
	assert.Equal(t, HashContent("package a\n"), item.Hash)
	assert.Equal(t, "code", item.Metadata["content_type"])
}

func TestFSProvider_FetchItemRejectsNonIndexableFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data.json", `{"a":1}`)

	p := NewFSProvider(0)
	_, err := p.FetchItem(context.Background(), filepath.Join(root, "data.json"))
	assert.Error(t, err)
}
