package chunk

import "github.com/agentroot/agentroot/internal/store"

// ToSemanticChunks converts chunker output into the store's persisted
// chunk rows, assigning Seq in the order the chunks were produced (which
// Chunk func already returns in document order) and mapping each chunk's
// symbol-derived type to store.ChunkType.
func ToSemanticChunks(contentHash string, chunks []*Chunk) []*store.SemanticChunk {
	out := make([]*store.SemanticChunk, 0, len(chunks))
	bytePos := 0
	for seq, c := range chunks {
		out = append(out, &store.SemanticChunk{
			ChunkHash:      c.ChunkHash,
			ContentHash:    contentHash,
			Seq:            seq,
			BytePosition:   bytePos,
			Type:           mapChunkType(c),
			StartLine:      c.StartLine,
			EndLine:        c.EndLine,
			Breadcrumb:     c.Breadcrumb,
			Language:       c.Language,
			LeadingTrivia:  c.LeadingTrivia,
			TrailingTrivia: c.TrailingTrivia,
			Text:           c.RawContent,
		})
		bytePos += len(c.RawContent)
	}
	return out
}

func mapChunkType(c *Chunk) store.ChunkType {
	if len(c.Symbols) == 0 {
		return store.ChunkTypeText
	}
	switch c.Symbols[0].Type {
	case SymbolTypeFunction:
		return store.ChunkTypeFunction
	case SymbolTypeMethod:
		return store.ChunkTypeMethod
	case SymbolTypeClass:
		return store.ChunkTypeClass
	case SymbolTypeStruct:
		return store.ChunkTypeStruct
	case SymbolTypeEnum:
		return store.ChunkTypeEnum
	case SymbolTypeTrait:
		return store.ChunkTypeTrait
	case SymbolTypeInterface:
		return store.ChunkTypeInterface
	default:
		return store.ChunkTypeText
	}
}
