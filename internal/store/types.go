// Package store provides the embedded relational store (SQLite + FTS5) that
// is the single source of truth for content, documents, chunks, embeddings,
// and LLM-generated metadata. It owns schema versioning and all transactional
// writes; see internal/store/schema.go for migrations.
package store

import (
	"context"
	"fmt"
	"time"
)

// CurrentSchemaVersion is the schema version this build of the store targets.
// Migrations run forward-only from whatever version is on disk up to this one.
const CurrentSchemaVersion = 11

// ChunkType classifies the AST node (or fallback window) a SemanticChunk was
// extracted from.
type ChunkType string

const (
	ChunkTypeFunction  ChunkType = "function"
	ChunkTypeMethod    ChunkType = "method"
	ChunkTypeClass     ChunkType = "class"
	ChunkTypeStruct    ChunkType = "struct"
	ChunkTypeEnum      ChunkType = "enum"
	ChunkTypeTrait     ChunkType = "trait"
	ChunkTypeInterface ChunkType = "interface"
	ChunkTypeModule    ChunkType = "module"
	ChunkTypeImport    ChunkType = "import"
	ChunkTypeText      ChunkType = "text"
)

// SourceType distinguishes where a document's bytes originated, mirroring
// the provider that produced it.
type SourceType string

const (
	SourceTypeFile SourceType = "file"
	SourceTypeRepo SourceType = "repo"
	SourceTypeWeb  SourceType = "web"
	SourceTypePDF  SourceType = "pdf"
	SourceTypeDB   SourceType = "db"
)

// DetailLevel selects how much of a result is projected back to the caller.
type DetailLevel string

const (
	DetailL0 DetailLevel = "L0" // abstract: title/category/difficulty only
	DetailL1 DetailLevel = "L1" // overview: + summary, keywords, concepts, snippet
	DetailL2 DetailLevel = "L2" // full: + raw body
)

// Content is the canonical, immutable text of a document, identified by the
// SHA-256 hash of its bytes. Stored exactly once (content-addressed).
type Content struct {
	Hash      string
	Doc       string
	CreatedAt time.Time
}

// Collection is a named group of documents drawn from one provider.
type Collection struct {
	Name           string
	BasePath       string
	Pattern        string
	ProviderType   string
	ProviderConfig string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Documentation marks a collection boosted x1.5 by the collection boost.
	// Whether a collection counts as "documentation" is operator-configured --
	// no name is special-cased.
	Documentation bool
}

// DocumentMetadata holds the LLM-generated, per-document fields.
type DocumentMetadata struct {
	Summary          string
	SemanticTitle    string
	Keywords         []string
	Category         string
	Intent           string
	Concepts         []string
	Difficulty       string
	SuggestedQueries []string
	GeneratedAt      time.Time
	GeneratingModel  string
}

// Document is a single indexed unit identified by (Collection, Path).
type Document struct {
	ID           int64
	Collection   string
	Path         string
	Title        string
	Hash         string // references Content.Hash
	CreatedAt    time.Time
	ModifiedAt   time.Time
	Active       bool
	SourceType   SourceType
	SourceURI    string
	Metadata     *DocumentMetadata // nil if never generated
	UserMetadata map[string]UserMetadataValue
	Importance   float64 // [1.0, 10.0], defaults to 1.0 when no link graph exists
}

// DocID returns the surface identifier for a document: "#" followed by the
// first 6 hex characters of its content hash.
func (d *Document) DocID() string {
	if len(d.Hash) < 6 {
		return "#" + d.Hash
	}
	return "#" + d.Hash[:6]
}

// VirtualURI returns the agentroot:// URI for a document.
func (d *Document) VirtualURI() string {
	return fmt.Sprintf("agentroot://%s/%s", d.Collection, d.Path)
}

// UserMetadataKind enumerates the typed value variants a UserMetadata entry
// may hold.
type UserMetadataKind string

const (
	UserMetaText         UserMetadataKind = "text"
	UserMetaInteger      UserMetadataKind = "integer"
	UserMetaFloat        UserMetadataKind = "float"
	UserMetaBoolean      UserMetadataKind = "boolean"
	UserMetaDateTime     UserMetadataKind = "datetime"
	UserMetaTags         UserMetadataKind = "tags"
	UserMetaEnum         UserMetadataKind = "enum"
	UserMetaQualitative  UserMetadataKind = "qualitative"
	UserMetaQuantitative UserMetadataKind = "quantitative"
	UserMetaJSON         UserMetadataKind = "json"
)

// UserMetadataValue is a typed key-value entry in a document's user metadata
// bag. Exactly one of the value fields is meaningful, selected by Kind.
type UserMetadataValue struct {
	Kind UserMetadataKind

	Text     string
	Integer  int64
	Float    float64
	Boolean  bool
	DateTime time.Time
	Tags     []string

	// Enum: EnumValue must be one of EnumAllowed.
	EnumValue   string
	EnumAllowed []string

	// Qualitative: Level must be one of Levels (an ordered scale, e.g. low/med/high).
	QualitativeLevel  string
	QualitativeLevels []string

	// Quantitative: a number with a unit, e.g. "4.2 seconds".
	QuantitativeNumber float64
	QuantitativeUnit   string

	JSON string
}

// SemanticChunk is a byte-aligned slice of a document's content.
type SemanticChunk struct {
	ChunkHash    string
	ContentHash  string // references Content.Hash of the owning document
	Seq          int    // order within the document, starting at 0
	BytePosition int

	Type           ChunkType
	StartLine      int // 1-indexed, inclusive
	EndLine        int // 1-indexed, inclusive
	Breadcrumb     string
	Language       string
	LeadingTrivia  string
	TrailingTrivia string
	Text           string
}

// ModelMetadata records the vector dimension an embedding model produces,
// and bookkeeping for observability.
type ModelMetadata struct {
	Model      string
	Dimensions int
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Concept is a normalized glossary term.
type Concept struct {
	ID      int64
	Term    string // lowercased, non-alphanumerics collapsed to '_'
	Snippet string
}

// Directory is a derived, per-(collection,path) aggregate.
type Directory struct {
	Collection       string
	Path             string
	Depth            int
	FileCount        int
	ChildDirCount    int
	Summary          string
	DominantLanguage string
	DominantCategory string
	Concepts         []string
	UpdatedAt        time.Time
}

// ErrInvariantViolation is returned when an operation would break a store
// invariant, e.g. inserting a document whose content hash does not exist,
// or an embedding whose dimension disagrees with the registered model
// dimension.
type ErrInvariantViolation struct {
	Reason string
}

func (e ErrInvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// ErrDuplicateKey is returned by upserts on a unique-constraint collision
// that the caller should treat as success (e.g. FTS mirror rows).
type ErrDuplicateKey struct {
	Table string
	Key   string
}

func (e ErrDuplicateKey) Error() string {
	return fmt.Sprintf("duplicate key in %s: %s", e.Table, e.Key)
}

// ErrModelMismatch is returned when a chunk's cached embedding model has a
// different dimension than the model currently in use.
type ErrModelMismatch struct {
	Model    string
	Expected int
	Got      int
}

func (e ErrModelMismatch) Error() string {
	return fmt.Sprintf("model %q dimension mismatch: registered %d, got %d", e.Model, e.Expected, e.Got)
}

// Store is the single source of truth for the engine's persisted state. All
// multi-row writes are transactional; search reads do not
// require a transaction.
type Store interface {
	Initialize(ctx context.Context) error
	Close() error

	// Collections
	UpsertCollection(ctx context.Context, c *Collection) error
	GetCollection(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)

	// Content + documents
	InsertContent(ctx context.Context, hash, doc string) error
	HasContent(ctx context.Context, hash string) (bool, error)
	UpsertDocument(ctx context.Context, d *Document) (int64, error)
	GetDocument(ctx context.Context, collection, path string) (*Document, error)
	DocumentsByContentHash(ctx context.Context, hash string) ([]*Document, error)
	ListActiveDocuments(ctx context.Context, collection string) ([]*Document, error)
	GetDocumentContent(ctx context.Context, collection, path string) (string, error)
	SetDocumentMetadata(ctx context.Context, collection, path string, md *DocumentMetadata) error
	SetDocumentActive(ctx context.Context, collection, path string, active bool) error

	// Chunks + embeddings
	ReplaceDocumentChunks(ctx context.Context, contentHash string, chunks []*SemanticChunk) error
	GetChunksByContent(ctx context.Context, contentHash string) ([]*SemanticChunk, error)
	GetChunk(ctx context.Context, chunkHash string) (*SemanticChunk, error)
	NextChunk(ctx context.Context, contentHash string, seq int) (*SemanticChunk, error)
	PrevChunk(ctx context.Context, contentHash string, seq int) (*SemanticChunk, error)

	RegisterModel(ctx context.Context, model string, dimensions int) error
	GetModelMetadata(ctx context.Context, model string) (*ModelMetadata, error)
	GetEmbedding(ctx context.Context, chunkHash, model string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, contentHash string, seq, pos int, chunkHash, model string, vec []float32) error
	AllEmbeddings(ctx context.Context, model string) (map[string][]float32, error)

	// FTS / BM25
	SearchDocumentsFTS(ctx context.Context, query string, limit int) ([]*FTSDocHit, error)
	SearchChunksFTS(ctx context.Context, query string, limit int) ([]*FTSChunkHit, error)

	// Concepts / glossary
	UpsertConcept(ctx context.Context, term, snippet string) (int64, error)
	GetConceptByTerm(ctx context.Context, term string) (*Concept, error)
	LinkConceptChunk(ctx context.Context, conceptID int64, chunkHash, snippet string) error
	SearchConceptsFTS(ctx context.Context, query string, limit int) ([]*FTSConceptHit, error)
	ChunksForConcept(ctx context.Context, conceptID int64) ([]string, error)

	// Directories
	UpsertDirectory(ctx context.Context, d *Directory) error
	GetDirectory(ctx context.Context, collection, path string) (*Directory, error)
	ListDirectories(ctx context.Context, collection string) ([]*Directory, error)
	SearchDirectoriesFTS(ctx context.Context, query string, limit int) ([]*FTSDirectoryHit, error)

	// Memories
	UpsertMemory(ctx context.Context, m *Memory) (int64, error)
	GetMemory(ctx context.Context, id int64) (*Memory, error)
	TouchMemory(ctx context.Context, id int64) error
	SearchMemoriesFTS(ctx context.Context, query string, limit int) ([]*FTSMemoryHit, error)
	DeleteMemory(ctx context.Context, id int64) error

	// Sessions
	CreateSession(ctx context.Context, id string, ttl time.Duration) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string, ttl time.Duration) error
	SetSessionContext(ctx context.Context, id, key, value string) error
	GetSessionContext(ctx context.Context, id string) (map[string]string, error)
	LogSessionQuery(ctx context.Context, id, query string, topHashes []string) error
	MarkSessionSeen(ctx context.Context, id, docHash, chunkHash string, detail DetailLevel) error
	SessionSeenHashes(ctx context.Context, id string) (docs map[string]bool, chunks map[string]bool, err error)
	DeleteSession(ctx context.Context, id string) error
	CleanupExpiredSessions(ctx context.Context) (int, error)

	// Maintenance
	CheckConsistency(ctx context.Context) (*ConsistencyReport, error)
	ReclaimOrphans(ctx context.Context) (*ReclaimReport, error)

	// Stats
	Stats(ctx context.Context) (*StoreStats, error)
}

// FTSConceptHit is a raw BM25 hit against the concept mirror.
type FTSConceptHit struct {
	ConceptID int64
	Term      string
	RawScore  float64
}

// FTSDirectoryHit is a raw BM25 hit against the directory summary mirror.
type FTSDirectoryHit struct {
	Collection string
	Path       string
	RawScore   float64
}

// FTSMemoryHit is a raw BM25 hit against the memory mirror.
type FTSMemoryHit struct {
	ID       int64
	RawScore float64
}

// Memory is a long-term, deduplicated fact/preference/entity/pattern
// recalled across sessions.
type Memory struct {
	ID             int64
	Content        string
	Category       MemoryCategory
	Confidence     float64
	ContentHash    string // SHA-256(Content), dedup key
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int
}

// MemoryCategory classifies a Memory entry.
type MemoryCategory string

const (
	MemoryPreference MemoryCategory = "preference"
	MemoryEntity     MemoryCategory = "entity"
	MemoryPattern    MemoryCategory = "pattern"
	MemoryFact       MemoryCategory = "fact"
)

// Session is a UUID-keyed scope for query dedup, kv context, and TTL-based
// expiry. A session is invalid past TTL even if the row has
// not yet been deleted by CleanupExpiredSessions.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
	Context    map[string]string
}

// Expired reports whether the session's TTL has elapsed as of now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// FTSDocHit is a raw BM25 hit against the document mirror.
type FTSDocHit struct {
	Collection string
	Path       string
	RawScore   float64 // unnormalized bm25() score from SQLite (more negative = better)
}

// FTSChunkHit is a raw BM25 hit against the chunk mirror.
type FTSChunkHit struct {
	ChunkHash string
	RawScore  float64
}

// ConsistencyReport summarizes invariant checks.
type ConsistencyReport struct {
	DanglingDocumentHashes  int
	OrphanedChunkEmbeddings int
	FTSDocumentMismatch     int
	DimensionMismatches     []ErrModelMismatch
}

// ReclaimReport summarizes what a cleanup pass removed.
type ReclaimReport struct {
	TombstonedDocumentsRemoved int
	OrphanedEmbeddingsRemoved  int
	OrphanedChunksRemoved      int
}

// StoreStats is a point-in-time snapshot for status reporting.
type StoreStats struct {
	Collections   int
	Documents     int
	ActiveDocs    int
	Chunks        int
	Embeddings    int
	SchemaVersion int
}
