package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// v2FixtureDDL is a hand-built snapshot of the documents/chunks shape at
// schema version 2: source_type and source_uri exist, but none of the
// later llm_*, importance, model_metadata, or chunk_embeddings additions
// do. It stands in for a store file written by an older build.
const v2FixtureDDL = `
CREATE TABLE schema_version (version INTEGER NOT NULL);
INSERT INTO schema_version(version) VALUES (2);

CREATE TABLE content (
	hash       TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE collections (
	name            TEXT PRIMARY KEY,
	base_path       TEXT NOT NULL DEFAULT '',
	pattern         TEXT NOT NULL DEFAULT '',
	provider_type   TEXT NOT NULL DEFAULT '',
	provider_config TEXT NOT NULL DEFAULT '',
	documentation   INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE documents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	collection  TEXT NOT NULL REFERENCES collections(name),
	path        TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	hash        TEXT NOT NULL REFERENCES content(hash),
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	modified_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	active      INTEGER NOT NULL DEFAULT 1,
	source_type TEXT NOT NULL DEFAULT 'file',
	source_uri  TEXT NOT NULL DEFAULT '',
	UNIQUE(collection, path)
);

CREATE VIRTUAL TABLE documents_fts USING fts5(
	doc_id UNINDEXED,
	title,
	body,
	keywords,
	tokenize='porter unicode61'
);

CREATE TABLE chunks (
	chunk_hash      TEXT PRIMARY KEY,
	content_hash    TEXT NOT NULL REFERENCES content(hash),
	seq             INTEGER NOT NULL,
	byte_position   INTEGER NOT NULL,
	type            TEXT NOT NULL DEFAULT 'text',
	start_line      INTEGER NOT NULL,
	end_line        INTEGER NOT NULL,
	breadcrumb      TEXT NOT NULL DEFAULT '',
	language        TEXT NOT NULL DEFAULT '',
	leading_trivia  TEXT NOT NULL DEFAULT '',
	trailing_trivia TEXT NOT NULL DEFAULT '',
	text            TEXT NOT NULL,
	UNIQUE(content_hash, seq)
);
CREATE INDEX idx_chunks_content_hash ON chunks(content_hash, seq);

CREATE VIRTUAL TABLE chunks_fts USING fts5(
	chunk_hash UNINDEXED,
	breadcrumb,
	text,
	tokenize='porter unicode61'
);
`

func writeV2Fixture(t *testing.T, dbPath string) {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range splitStatements(v2FixtureDDL) {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	_, err = db.Exec(`INSERT INTO content(hash, doc) VALUES ('deadbeef', 'hello world')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO collections(name) VALUES ('docs')`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO documents(collection, path, title, hash, source_type, source_uri)
		VALUES ('docs', 'readme.md', 'Readme', 'deadbeef', 'file', '')
	`)
	require.NoError(t, err)
}

func columnExists(t *testing.T, db *sql.DB, table, column string) bool {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	require.NoError(t, err)
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		require.NoError(t, rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk))
		if name == column {
			return true
		}
	}
	return false
}

func TestSQLiteStore_Initialize_MigratesOldStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "v2.db")
	writeV2Fixture(t, dbPath)

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Initialize(ctx))

	version, err := store.schemaVersion(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, 11)

	for _, col := range []string{
		"source_type", "source_uri", "importance",
		"llm_summary", "llm_title", "llm_keywords", "llm_category", "llm_intent",
		"llm_concepts", "llm_difficulty", "llm_queries", "llm_metadata_generated_at", "llm_model",
		"user_metadata_json",
	} {
		assert.True(t, columnExists(t, store.db, "documents", col), "documents.%s should exist after migration", col)
	}
	for _, table := range []string{"chunk_embeddings", "model_metadata", "concepts", "directories", "memories", "sessions"} {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s should exist after migration", table)
	}

	doc, err := store.GetDocument(ctx, "docs", "readme.md")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Readme", doc.Title)
	assert.Equal(t, "deadbeef", doc.Hash)
}

func TestSQLiteStore_Initialize_IsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "v2.db")
	writeV2Fixture(t, dbPath)

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.Initialize(ctx))

	version, err := store.schemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, 1, count, "schema_version must hold exactly one row after repeated Initialize calls")
}

func TestSQLiteStore_Initialize_FreshStore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Initialize(ctx))

	version, err := store.schemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}
