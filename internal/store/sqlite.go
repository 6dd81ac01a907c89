package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the single embedded-store implementation backing the
// Store interface: one *sql.DB, one file, one FTS5 mirror per concern.
// Single-writer discipline is enforced with one open connection, WAL
// journaling, and an integrity check on open that resets a corrupted file
// rather than failing opaquely.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu sync.RWMutex // guards in-process bookkeeping, not the DB itself
}

// NewSQLiteStore opens (creating if absent) the SQLite file at dbPath and
// configures it for single-writer, WAL-mode operation.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithLogger(dbPath, slog.Default())
}

// NewSQLiteStoreWithLogger is NewSQLiteStore with an explicit logger.
func NewSQLiteStoreWithLogger(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := validateSQLiteIntegrity(dbPath, logger); err != nil {
		logger.Warn("discarding corrupted store database", "path", dbPath, "error", err)
		_ = os.Remove(dbPath)
		_ = os.Remove(dbPath + "-wal")
		_ = os.Remove(dbPath + "-shm")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ErrInvariantViolation{Reason: fmt.Sprintf("open store: %v", err)}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-65536",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db, path: dbPath, logger: logger}, nil
}

// validateSQLiteIntegrity opens dbPath read-only (if present) and runs a
// quick integrity check so a corrupted file is discarded instead of
// poisoning every subsequent open.
func validateSQLiteIntegrity(dbPath string, logger *slog.Logger) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("quick_check reported: %s", result)
	}
	return nil
}

// Initialize brings the store up to CurrentSchemaVersion. A brand new file
// gets the latest schema directly; an existing file runs every migration
// step above its recorded version, in order, each in its own transaction so
// a failure partway through leaves the version on disk at the last step
// that actually committed rather than corrupting it. Calling Initialize
// again once a store is current is a no-op: every due-migration check is
// keyed off the stored version, so migrations never replay.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("schema_version table: %w", err)
	}

	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	if version == 0 {
		return s.runSchemaStep(ctx, CurrentSchemaVersion, splitStatements(schemaDDL))
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if err := s.runSchemaStep(ctx, m.version, m.stmts); err != nil {
			return fmt.Errorf("migrate to schema v%d: %w", m.version, err)
		}
		version = m.version
	}
	return nil
}

// schemaVersion returns the version recorded on disk, or 0 for a store that
// has never been initialized.
func (s *SQLiteStore) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// runSchemaStep applies stmts and records toVersion atomically: both the
// DDL and the version bump land in the same transaction, or neither does.
func (s *SQLiteStore) runSchemaStep(ctx context.Context, toVersion int, stmts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version(version) VALUES (?)", toVersion); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- collections ---

func (s *SQLiteStore) UpsertCollection(ctx context.Context, c *Collection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections(name, base_path, pattern, provider_type, provider_config, documentation, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			base_path=excluded.base_path, pattern=excluded.pattern,
			provider_type=excluded.provider_type, provider_config=excluded.provider_config,
			documentation=excluded.documentation, updated_at=CURRENT_TIMESTAMP
	`, c.Name, c.BasePath, c.Pattern, c.ProviderType, c.ProviderConfig, boolToInt(c.Documentation))
	return err
}

func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, base_path, pattern, provider_type, provider_config, documentation, created_at, updated_at
		FROM collections WHERE name = ?
	`, name)
	c := &Collection{}
	var doc int
	if err := row.Scan(&c.Name, &c.BasePath, &c.Pattern, &c.ProviderType, &c.ProviderConfig, &doc, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.Documentation = doc != 0
	return c, nil
}

func (s *SQLiteStore) ListCollections(ctx context.Context) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, base_path, pattern, provider_type, provider_config, documentation, created_at, updated_at
		FROM collections ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		c := &Collection{}
		var doc int
		if err := rows.Scan(&c.Name, &c.BasePath, &c.Pattern, &c.ProviderType, &c.ProviderConfig, &doc, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Documentation = doc != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- content + documents ---

func (s *SQLiteStore) InsertContent(ctx context.Context, hash, doc string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content(hash, doc) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, doc)
	return err
}

func (s *SQLiteStore) HasContent(ctx context.Context, hash string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM content WHERE hash = ?", hash).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// llmColumns holds a DocumentMetadata encoded as the documents table's
// llm_* columns: scalar fields stored directly, slice fields JSON-encoded.
type llmColumns struct {
	summary, title, category, intent, difficulty, model sql.NullString
	keywords, concepts, queries                          sql.NullString
	generatedAt                                           sql.NullTime
}

func encodeLLMColumns(md *DocumentMetadata) (llmColumns, error) {
	if md == nil {
		return llmColumns{}, nil
	}
	keywords, err := json.Marshal(md.Keywords)
	if err != nil {
		return llmColumns{}, err
	}
	concepts, err := json.Marshal(md.Concepts)
	if err != nil {
		return llmColumns{}, err
	}
	queries, err := json.Marshal(md.SuggestedQueries)
	if err != nil {
		return llmColumns{}, err
	}
	c := llmColumns{
		summary:    sql.NullString{String: md.Summary, Valid: md.Summary != ""},
		title:      sql.NullString{String: md.SemanticTitle, Valid: md.SemanticTitle != ""},
		category:   sql.NullString{String: md.Category, Valid: md.Category != ""},
		intent:     sql.NullString{String: md.Intent, Valid: md.Intent != ""},
		difficulty: sql.NullString{String: md.Difficulty, Valid: md.Difficulty != ""},
		model:      sql.NullString{String: md.GeneratingModel, Valid: md.GeneratingModel != ""},
		keywords:   sql.NullString{String: string(keywords), Valid: len(md.Keywords) > 0},
		concepts:   sql.NullString{String: string(concepts), Valid: len(md.Concepts) > 0},
		queries:    sql.NullString{String: string(queries), Valid: len(md.SuggestedQueries) > 0},
	}
	if !md.GeneratedAt.IsZero() {
		c.generatedAt = sql.NullTime{Time: md.GeneratedAt, Valid: true}
	}
	return c, nil
}

// decodeLLMColumns reverses encodeLLMColumns, returning nil when no LLM
// metadata has ever been generated for the document.
func decodeLLMColumns(c llmColumns) *DocumentMetadata {
	if !c.summary.Valid && !c.title.Valid && !c.category.Valid && !c.intent.Valid &&
		!c.difficulty.Valid && !c.model.Valid && !c.keywords.Valid && !c.concepts.Valid &&
		!c.queries.Valid && !c.generatedAt.Valid {
		return nil
	}
	md := &DocumentMetadata{
		Summary:         c.summary.String,
		SemanticTitle:   c.title.String,
		Category:        c.category.String,
		Intent:          c.intent.String,
		Difficulty:      c.difficulty.String,
		GeneratingModel: c.model.String,
	}
	if c.keywords.Valid {
		_ = json.Unmarshal([]byte(c.keywords.String), &md.Keywords)
	}
	if c.concepts.Valid {
		_ = json.Unmarshal([]byte(c.concepts.String), &md.Concepts)
	}
	if c.queries.Valid {
		_ = json.Unmarshal([]byte(c.queries.String), &md.SuggestedQueries)
	}
	if c.generatedAt.Valid {
		md.GeneratedAt = c.generatedAt.Time
	}
	return md
}

func (s *SQLiteStore) UpsertDocument(ctx context.Context, d *Document) (int64, error) {
	has, err := s.HasContent(ctx, d.Hash)
	if err != nil {
		return 0, err
	}
	if !has {
		return 0, ErrInvariantViolation{Reason: fmt.Sprintf("document %s/%s references unknown content hash %s", d.Collection, d.Path, d.Hash)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	llm, err := encodeLLMColumns(d.Metadata)
	if err != nil {
		return 0, err
	}
	var userMetaJSON []byte
	if d.UserMetadata != nil {
		userMetaJSON, err = json.Marshal(d.UserMetadata)
		if err != nil {
			return 0, err
		}
	}
	importance := d.Importance
	if importance == 0 {
		importance = 1.0
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents(
			collection, path, title, hash, modified_at, active, source_type, source_uri, importance,
			llm_summary, llm_title, llm_keywords, llm_category, llm_intent, llm_concepts,
			llm_difficulty, llm_queries, llm_metadata_generated_at, llm_model, user_metadata_json
		)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, path) DO UPDATE SET
			title=excluded.title, hash=excluded.hash, modified_at=CURRENT_TIMESTAMP,
			active=excluded.active, source_type=excluded.source_type, source_uri=excluded.source_uri,
			importance=excluded.importance,
			llm_summary=excluded.llm_summary, llm_title=excluded.llm_title, llm_keywords=excluded.llm_keywords,
			llm_category=excluded.llm_category, llm_intent=excluded.llm_intent, llm_concepts=excluded.llm_concepts,
			llm_difficulty=excluded.llm_difficulty, llm_queries=excluded.llm_queries,
			llm_metadata_generated_at=excluded.llm_metadata_generated_at, llm_model=excluded.llm_model,
			user_metadata_json=excluded.user_metadata_json
	`, d.Collection, d.Path, d.Title, d.Hash, boolToInt(d.Active), string(d.SourceType), d.SourceURI, importance,
		llm.summary, llm.title, llm.keywords, llm.category, llm.intent, llm.concepts,
		llm.difficulty, llm.queries, llm.generatedAt, llm.model, nullableString(userMetaJSON))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE collection = ? AND path = ?", d.Collection, d.Path).Scan(&id); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents_fts WHERE doc_id = ?", id); err != nil {
		return 0, err
	}
	var keywords string
	if d.Metadata != nil {
		keywords = strings.Join(d.Metadata.Keywords, " ")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents_fts(doc_id, title, body, keywords) VALUES (?, ?, (SELECT doc FROM content WHERE hash = ?), ?)
	`, id, d.Title, d.Hash, keywords); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	res.LastInsertId()
	return id, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, collection, path string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, collection, path, title, hash, created_at, modified_at, active, source_type, source_uri, importance,
			llm_summary, llm_title, llm_keywords, llm_category, llm_intent, llm_concepts,
			llm_difficulty, llm_queries, llm_metadata_generated_at, llm_model
		FROM documents WHERE collection = ? AND path = ?
	`, collection, path)

	d := &Document{}
	var active int
	var sourceType string
	var llm llmColumns
	if err := row.Scan(&d.ID, &d.Collection, &d.Path, &d.Title, &d.Hash, &d.CreatedAt, &d.ModifiedAt, &active, &sourceType, &d.SourceURI, &d.Importance,
		&llm.summary, &llm.title, &llm.keywords, &llm.category, &llm.intent, &llm.concepts,
		&llm.difficulty, &llm.queries, &llm.generatedAt, &llm.model); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.Active = active != 0
	d.SourceType = SourceType(sourceType)
	d.Metadata = decodeLLMColumns(llm)
	return d, nil
}

func (s *SQLiteStore) DocumentsByContentHash(ctx context.Context, hash string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection, path, title, hash, created_at, modified_at, active, source_type, source_uri, importance
		FROM documents WHERE hash = ? AND active = 1 ORDER BY modified_at DESC
	`, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d := &Document{}
		var active int
		var sourceType string
		if err := rows.Scan(&d.ID, &d.Collection, &d.Path, &d.Title, &d.Hash, &d.CreatedAt, &d.ModifiedAt, &active, &sourceType, &d.SourceURI, &d.Importance); err != nil {
			return nil, err
		}
		d.Active = active != 0
		d.SourceType = SourceType(sourceType)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListActiveDocuments returns every active document in collection, ordered
// by path.
func (s *SQLiteStore) ListActiveDocuments(ctx context.Context, collection string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection, path, title, hash, created_at, modified_at, active, source_type, source_uri, importance,
			llm_summary, llm_title, llm_keywords, llm_category, llm_intent, llm_concepts,
			llm_difficulty, llm_queries, llm_metadata_generated_at, llm_model
		FROM documents WHERE collection = ? AND active = 1 ORDER BY path
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		d := &Document{}
		var active int
		var sourceType string
		var llm llmColumns
		if err := rows.Scan(&d.ID, &d.Collection, &d.Path, &d.Title, &d.Hash, &d.CreatedAt, &d.ModifiedAt, &active, &sourceType, &d.SourceURI, &d.Importance,
			&llm.summary, &llm.title, &llm.keywords, &llm.category, &llm.intent, &llm.concepts,
			&llm.difficulty, &llm.queries, &llm.generatedAt, &llm.model); err != nil {
			return nil, err
		}
		d.Active = active != 0
		d.SourceType = SourceType(sourceType)
		d.Metadata = decodeLLMColumns(llm)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetDocumentContent(ctx context.Context, collection, path string) (string, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT c.doc FROM content c JOIN documents d ON d.hash = c.hash
		WHERE d.collection = ? AND d.path = ?
	`, collection, path).Scan(&doc)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return doc, err
}

func (s *SQLiteStore) SetDocumentMetadata(ctx context.Context, collection, path string, md *DocumentMetadata) error {
	llm, err := encodeLLMColumns(md)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE documents SET
			llm_summary = ?, llm_title = ?, llm_keywords = ?, llm_category = ?, llm_intent = ?,
			llm_concepts = ?, llm_difficulty = ?, llm_queries = ?, llm_metadata_generated_at = ?, llm_model = ?
		WHERE collection = ? AND path = ?
	`, llm.summary, llm.title, llm.keywords, llm.category, llm.intent,
		llm.concepts, llm.difficulty, llm.queries, llm.generatedAt, llm.model,
		collection, path)
	return err
}

func (s *SQLiteStore) SetDocumentActive(ctx context.Context, collection, path string, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents SET active = ? WHERE collection = ? AND path = ?
	`, boolToInt(active), collection, path)
	return err
}

// --- chunks + embeddings ---

func (s *SQLiteStore) ReplaceDocumentChunks(ctx context.Context, contentHash string, chunks []*SemanticChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	oldHashes, err := queryChunkHashes(ctx, tx, contentHash)
	if err != nil {
		return err
	}
	for _, h := range oldHashes {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunk_embeddings WHERE chunk_hash = ?", h); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts WHERE chunk_hash = ?", h); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE content_hash = ?", contentHash); err != nil {
		return err
	}

	for _, c := range chunks {
		if c.ContentHash != contentHash {
			return ErrInvariantViolation{Reason: fmt.Sprintf("chunk %s does not belong to content %s", c.ChunkHash, contentHash)}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks(chunk_hash, content_hash, seq, byte_position, type, start_line, end_line, breadcrumb, language, leading_trivia, trailing_trivia, text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_hash) DO UPDATE SET seq=excluded.seq, byte_position=excluded.byte_position
		`, c.ChunkHash, c.ContentHash, c.Seq, c.BytePosition, string(c.Type), c.StartLine, c.EndLine, c.Breadcrumb, c.Language, c.LeadingTrivia, c.TrailingTrivia, c.Text); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chunks_fts(chunk_hash, breadcrumb, text) VALUES (?, ?, ?)
		`, c.ChunkHash, c.Breadcrumb, c.Text); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func queryChunkHashes(ctx context.Context, tx *sql.Tx, contentHash string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT chunk_hash FROM chunks WHERE content_hash = ?", contentHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetChunksByContent(ctx context.Context, contentHash string) ([]*SemanticChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_hash, content_hash, seq, byte_position, type, start_line, end_line, breadcrumb, language, leading_trivia, trailing_trivia, text
		FROM chunks WHERE content_hash = ? ORDER BY seq
	`, contentHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *SQLiteStore) GetChunk(ctx context.Context, chunkHash string) (*SemanticChunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chunk_hash, content_hash, seq, byte_position, type, start_line, end_line, breadcrumb, language, leading_trivia, trailing_trivia, text
		FROM chunks WHERE chunk_hash = ?
	`, chunkHash)
	c := &SemanticChunk{}
	var typ string
	if err := row.Scan(&c.ChunkHash, &c.ContentHash, &c.Seq, &c.BytePosition, &typ, &c.StartLine, &c.EndLine, &c.Breadcrumb, &c.Language, &c.LeadingTrivia, &c.TrailingTrivia, &c.Text); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.Type = ChunkType(typ)
	return c, nil
}

func (s *SQLiteStore) NextChunk(ctx context.Context, contentHash string, seq int) (*SemanticChunk, error) {
	return s.adjacentChunk(ctx, contentHash, seq, true)
}

func (s *SQLiteStore) PrevChunk(ctx context.Context, contentHash string, seq int) (*SemanticChunk, error) {
	return s.adjacentChunk(ctx, contentHash, seq, false)
}

func (s *SQLiteStore) adjacentChunk(ctx context.Context, contentHash string, seq int, next bool) (*SemanticChunk, error) {
	op, order := ">", "ASC"
	if !next {
		op, order = "<", "DESC"
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT chunk_hash, content_hash, seq, byte_position, type, start_line, end_line, breadcrumb, language, leading_trivia, trailing_trivia, text
		FROM chunks WHERE content_hash = ? AND seq %s ? ORDER BY seq %s LIMIT 1
	`, op, order), contentHash, seq)
	c := &SemanticChunk{}
	var typ string
	if err := row.Scan(&c.ChunkHash, &c.ContentHash, &c.Seq, &c.BytePosition, &typ, &c.StartLine, &c.EndLine, &c.Breadcrumb, &c.Language, &c.LeadingTrivia, &c.TrailingTrivia, &c.Text); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.Type = ChunkType(typ)
	return c, nil
}

func scanChunks(rows *sql.Rows) ([]*SemanticChunk, error) {
	var out []*SemanticChunk
	for rows.Next() {
		c := &SemanticChunk{}
		var typ string
		if err := rows.Scan(&c.ChunkHash, &c.ContentHash, &c.Seq, &c.BytePosition, &typ, &c.StartLine, &c.EndLine, &c.Breadcrumb, &c.Language, &c.LeadingTrivia, &c.TrailingTrivia, &c.Text); err != nil {
			return nil, err
		}
		c.Type = ChunkType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RegisterModel(ctx context.Context, model string, dimensions int) error {
	existing, err := s.GetModelMetadata(ctx, model)
	if err != nil {
		return err
	}
	if existing != nil && existing.Dimensions != dimensions {
		return ErrModelMismatch{Model: model, Expected: existing.Dimensions, Got: dimensions}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO model_metadata(model, dimensions, last_used_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(model) DO UPDATE SET last_used_at=CURRENT_TIMESTAMP
	`, model, dimensions)
	return err
}

func (s *SQLiteStore) GetModelMetadata(ctx context.Context, model string) (*ModelMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT model, dimensions, created_at, last_used_at FROM model_metadata WHERE model = ?
	`, model)
	m := &ModelMetadata{}
	if err := row.Scan(&m.Model, &m.Dimensions, &m.CreatedAt, &m.LastUsedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) GetEmbedding(ctx context.Context, chunkHash, model string) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT vector FROM chunk_embeddings WHERE chunk_hash = ? AND model = ?
	`, chunkHash, model).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeVector(blob), true, nil
}

func (s *SQLiteStore) PutEmbedding(ctx context.Context, contentHash string, seq, pos int, chunkHash, model string, vec []float32) error {
	mm, err := s.GetModelMetadata(ctx, model)
	if err != nil {
		return err
	}
	if mm == nil {
		return ErrInvariantViolation{Reason: fmt.Sprintf("model %q not registered before embedding", model)}
	}
	if mm.Dimensions != len(vec) {
		return ErrModelMismatch{Model: model, Expected: mm.Dimensions, Got: len(vec)}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunk_embeddings(chunk_hash, model, content_hash, seq, vector) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_hash, model) DO UPDATE SET vector=excluded.vector
	`, chunkHash, model, contentHash, seq, encodeVector(vec))
	return err
}

func (s *SQLiteStore) AllEmbeddings(ctx context.Context, model string) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT chunk_hash, vector FROM chunk_embeddings WHERE model = ?", model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var hash string
		var blob []byte
		if err := rows.Scan(&hash, &blob); err != nil {
			return nil, err
		}
		out[hash] = decodeVector(blob)
	}
	return out, rows.Err()
}

// --- FTS ---

func (s *SQLiteStore) SearchDocumentsFTS(ctx context.Context, query string, limit int) ([]*FTSDocHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.collection, d.path, bm25(documents_fts, 1.0, 3.0, 2.0) AS score
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.doc_id
		WHERE documents_fts MATCH ? AND d.active = 1
		ORDER BY score LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FTSDocHit
	for rows.Next() {
		h := &FTSDocHit{}
		if err := rows.Scan(&h.Collection, &h.Path, &h.RawScore); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SearchChunksFTS(ctx context.Context, query string, limit int) ([]*FTSChunkHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_hash, bm25(chunks_fts, 2.0, 1.0) AS score
		FROM chunks_fts WHERE chunks_fts MATCH ? ORDER BY score LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FTSChunkHit
	for rows.Next() {
		h := &FTSChunkHit{}
		if err := rows.Scan(&h.ChunkHash, &h.RawScore); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// --- maintenance ---

func (s *SQLiteStore) CheckConsistency(ctx context.Context) (*ConsistencyReport, error) {
	report := &ConsistencyReport{}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents d LEFT JOIN content c ON c.hash = d.hash WHERE c.hash IS NULL
	`).Scan(&report.DanglingDocumentHashes); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunk_embeddings ce LEFT JOIN chunks c ON c.chunk_hash = ce.chunk_hash WHERE c.chunk_hash IS NULL
	`).Scan(&report.OrphanedChunkEmbeddings); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM documents WHERE active = 1) - (SELECT COUNT(*) FROM documents_fts)
	`).Scan(&report.FTSDocumentMismatch); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ce.model, mm.dimensions, length(ce.vector)/4 FROM chunk_embeddings ce
		JOIN model_metadata mm ON mm.model = ce.model
		WHERE length(ce.vector)/4 != mm.dimensions
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var mm ErrModelMismatch
		if err := rows.Scan(&mm.Model, &mm.Expected, &mm.Got); err != nil {
			return nil, err
		}
		report.DimensionMismatches = append(report.DimensionMismatches, mm)
	}
	return report, rows.Err()
}

func (s *SQLiteStore) ReclaimOrphans(ctx context.Context) (*ReclaimReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	report := &ReclaimReport{}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM chunk_embeddings WHERE chunk_hash NOT IN (SELECT chunk_hash FROM chunks)
	`)
	if err != nil {
		return nil, err
	}
	n, _ := res.RowsAffected()
	report.OrphanedEmbeddingsRemoved = int(n)

	res, err = tx.ExecContext(ctx, `
		DELETE FROM chunks WHERE content_hash NOT IN (SELECT hash FROM content)
	`)
	if err != nil {
		return nil, err
	}
	n, _ = res.RowsAffected()
	report.OrphanedChunksRemoved = int(n)

	res, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE active = 0 AND modified_at < datetime('now', '-30 days')`)
	if err != nil {
		return nil, err
	}
	n, _ = res.RowsAffected()
	report.TombstonedDocumentsRemoved = int(n)

	return report, tx.Commit()
}

func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	st := &StoreStats{SchemaVersion: CurrentSchemaVersion}
	queries := []struct {
		dest  *int
		query string
	}{
		{&st.Collections, "SELECT COUNT(*) FROM collections"},
		{&st.Documents, "SELECT COUNT(*) FROM documents"},
		{&st.ActiveDocs, "SELECT COUNT(*) FROM documents WHERE active = 1"},
		{&st.Chunks, "SELECT COUNT(*) FROM chunks"},
		{&st.Embeddings, "SELECT COUNT(*) FROM chunk_embeddings"},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// --- helpers ---

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func splitStatements(ddl string) []string {
	parts := strings.Split(ddl, ";")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

var _ Store = (*SQLiteStore)(nil)
