package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// ComputeChunkHash returns the content-addressed chunk_hash: the first
// 32 hex characters of BLAKE3(leading-trivia || body ||
// trailing-trivia). Keying purely on content bytes -- not file path or
// position -- means an identical function body hashes identically no
// matter where it's found, which is what the embedding cache in
// internal/embed keys on.
func ComputeChunkHash(leading, body, trailing string) string {
	h := blake3.New()
	h.Write([]byte(leading))
	h.Write([]byte(body))
	h.Write([]byte(trailing))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:32]
}

// generateChunkID computes a file-scoped row identity (distinct from the
// content-addressed chunk_hash): stable across line-number shifts within a
// file, but distinct per file even for byte-identical content, so it is
// safe to use as a SQL row key that stays the same when a symbol moves
// within the same file without touching unrelated rows.
func generateChunkID(filePath, content string) string {
	contentHash := sha256.Sum256([]byte(content))
	contentHashStr := hex.EncodeToString(contentHash[:])[:16]

	pathHash := sha256.Sum256([]byte(filePath + ":" + contentHashStr))
	return hex.EncodeToString(pathHash[:])[:16]
}

// BuildBreadcrumb joins the enclosing symbol names (outermost first) with
// " > ", prefixed by the file path, e.g. "pkg/foo.go > Bar > Baz".
func BuildBreadcrumb(filePath string, symbolNames ...string) string {
	parts := make([]string, 0, len(symbolNames)+1)
	parts = append(parts, filePath)
	for _, n := range symbolNames {
		if n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, " > ")
}
