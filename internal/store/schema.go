package store

// schemaDDL is the schema at CurrentSchemaVersion, applied directly (via
// CREATE TABLE IF NOT EXISTS) when opening a brand new store file. Opening
// an existing store at an older version instead runs the step-by-step
// migrations below, in order, so on-disk rows survive the upgrade; see
// migrations and (*SQLiteStore).Initialize.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS content (
	hash       TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS collections (
	name            TEXT PRIMARY KEY,
	base_path       TEXT NOT NULL DEFAULT '',
	pattern         TEXT NOT NULL DEFAULT '',
	provider_type   TEXT NOT NULL DEFAULT '',
	provider_config TEXT NOT NULL DEFAULT '',
	documentation   INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	collection    TEXT NOT NULL REFERENCES collections(name),
	path          TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	hash          TEXT NOT NULL REFERENCES content(hash),
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	modified_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	active        INTEGER NOT NULL DEFAULT 1,
	source_type   TEXT NOT NULL DEFAULT 'file',
	source_uri    TEXT NOT NULL DEFAULT '',
	importance    REAL NOT NULL DEFAULT 1.0,
	llm_summary               TEXT,
	llm_title                 TEXT,
	llm_keywords              TEXT,
	llm_category              TEXT,
	llm_intent                TEXT,
	llm_concepts              TEXT,
	llm_difficulty            TEXT,
	llm_queries               TEXT,
	llm_metadata_generated_at TIMESTAMP,
	llm_model                 TEXT,
	user_metadata_json TEXT,
	UNIQUE(collection, path)
);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	doc_id UNINDEXED,
	title,
	body,
	keywords,
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS model_metadata (
	model        TEXT PRIMARY KEY,
	dimensions   INTEGER NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chunks (
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
CREATE INDEX IF NOT EXISTS idx_chunks_content_hash ON chunks(content_hash, seq);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_hash UNINDEXED,
	breadcrumb,
	text,
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_hash   TEXT NOT NULL REFERENCES chunks(chunk_hash),
	model        TEXT NOT NULL REFERENCES model_metadata(model),
	content_hash TEXT NOT NULL,
	seq          INTEGER NOT NULL,
	vector       BLOB NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (chunk_hash, model)
);
CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_model ON chunk_embeddings(model);

CREATE TABLE IF NOT EXISTS concepts (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	term    TEXT NOT NULL UNIQUE,
	snippet TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS concept_chunks (
	concept_id INTEGER NOT NULL REFERENCES concepts(id),
	chunk_hash TEXT NOT NULL REFERENCES chunks(chunk_hash),
	snippet    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (concept_id, chunk_hash)
);

CREATE VIRTUAL TABLE IF NOT EXISTS concepts_fts USING fts5(
	term,
	snippet,
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS directories (
	collection        TEXT NOT NULL,
	path              TEXT NOT NULL,
	depth             INTEGER NOT NULL DEFAULT 0,
	file_count        INTEGER NOT NULL DEFAULT 0,
	child_dir_count   INTEGER NOT NULL DEFAULT 0,
	summary           TEXT NOT NULL DEFAULT '',
	dominant_language TEXT NOT NULL DEFAULT '',
	dominant_category TEXT NOT NULL DEFAULT '',
	concepts_json     TEXT NOT NULL DEFAULT '[]',
	updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, path)
);

CREATE VIRTUAL TABLE IF NOT EXISTS directories_fts USING fts5(
	collection UNINDEXED,
	path UNINDEXED,
	summary,
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS memories (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	key              TEXT NOT NULL UNIQUE, -- content_hash, dedup key
	content          TEXT NOT NULL,
	category         TEXT NOT NULL DEFAULT 'fact',
	confidence       REAL NOT NULL DEFAULT 1.0,
	access_count     INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_accessed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	key UNINDEXED,
	content,
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at   TIMESTAMP NOT NULL,
	context_json TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS session_queries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	query      TEXT NOT NULL,
	result_hashes_json TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_session_queries_session ON session_queries(session_id);

CREATE TABLE IF NOT EXISTS session_seen (
	session_id    TEXT NOT NULL REFERENCES sessions(id),
	document_hash TEXT NOT NULL,
	chunk_hash    TEXT NOT NULL DEFAULT '',
	detail_level  TEXT NOT NULL DEFAULT '',
	seen_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (session_id, document_hash, chunk_hash, detail_level)
);
`

// migration is one forward step in the schema's history: the DDL that
// takes a store from the version immediately below version to version,
// and the version it lands on once applied.
type migration struct {
	version int
	stmts   []string
}

// migrations is the full forward-only history of this schema, in order.
// (*SQLiteStore).Initialize walks it starting just above whatever version
// is recorded on disk; a fresh store skips straight to schemaDDL instead of
// replaying history. Each step's DDL is additive (new column or new table)
// so existing rows are carried through untouched.
var migrations = []migration{
	{
		version: 2,
		stmts: []string{
			`ALTER TABLE documents ADD COLUMN source_type TEXT NOT NULL DEFAULT 'file'`,
			`ALTER TABLE documents ADD COLUMN source_uri TEXT NOT NULL DEFAULT ''`,
		},
	},
	{
		version: 3,
		stmts: []string{
			`ALTER TABLE documents ADD COLUMN importance REAL NOT NULL DEFAULT 1.0`,
		},
	},
	{
		version: 4,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS model_metadata (
				model        TEXT PRIMARY KEY,
				dimensions   INTEGER NOT NULL,
				created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
	{
		version: 5,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS chunk_embeddings (
				chunk_hash   TEXT NOT NULL REFERENCES chunks(chunk_hash),
				model        TEXT NOT NULL REFERENCES model_metadata(model),
				content_hash TEXT NOT NULL,
				seq          INTEGER NOT NULL,
				vector       BLOB NOT NULL,
				created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (chunk_hash, model)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_model ON chunk_embeddings(model)`,
		},
	},
	{
		version: 6,
		stmts: []string{
			`ALTER TABLE documents ADD COLUMN llm_summary TEXT`,
			`ALTER TABLE documents ADD COLUMN llm_title TEXT`,
			`ALTER TABLE documents ADD COLUMN llm_keywords TEXT`,
			`ALTER TABLE documents ADD COLUMN llm_category TEXT`,
			`ALTER TABLE documents ADD COLUMN llm_intent TEXT`,
		},
	},
	{
		version: 7,
		stmts: []string{
			`ALTER TABLE documents ADD COLUMN llm_concepts TEXT`,
			`ALTER TABLE documents ADD COLUMN llm_difficulty TEXT`,
			`ALTER TABLE documents ADD COLUMN llm_queries TEXT`,
			`ALTER TABLE documents ADD COLUMN llm_metadata_generated_at TIMESTAMP`,
			`ALTER TABLE documents ADD COLUMN llm_model TEXT`,
		},
	},
	{
		version: 8,
		stmts: []string{
			`ALTER TABLE documents ADD COLUMN user_metadata_json TEXT`,
		},
	},
	{
		version: 9,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS concepts (
				id      INTEGER PRIMARY KEY AUTOINCREMENT,
				term    TEXT NOT NULL UNIQUE,
				snippet TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE IF NOT EXISTS concept_chunks (
				concept_id INTEGER NOT NULL REFERENCES concepts(id),
				chunk_hash TEXT NOT NULL REFERENCES chunks(chunk_hash),
				snippet    TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (concept_id, chunk_hash)
			)`,
			`CREATE VIRTUAL TABLE IF NOT EXISTS concepts_fts USING fts5(
				term,
				snippet,
				tokenize='porter unicode61'
			)`,
			`CREATE TABLE IF NOT EXISTS directories (
				collection        TEXT NOT NULL,
				path              TEXT NOT NULL,
				depth             INTEGER NOT NULL DEFAULT 0,
				file_count        INTEGER NOT NULL DEFAULT 0,
				child_dir_count   INTEGER NOT NULL DEFAULT 0,
				summary           TEXT NOT NULL DEFAULT '',
				dominant_language TEXT NOT NULL DEFAULT '',
				dominant_category TEXT NOT NULL DEFAULT '',
				concepts_json     TEXT NOT NULL DEFAULT '[]',
				updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (collection, path)
			)`,
			`CREATE VIRTUAL TABLE IF NOT EXISTS directories_fts USING fts5(
				collection UNINDEXED,
				path UNINDEXED,
				summary,
				tokenize='porter unicode61'
			)`,
		},
	},
	{
		version: 10,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS memories (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				key              TEXT NOT NULL UNIQUE,
				content          TEXT NOT NULL,
				category         TEXT NOT NULL DEFAULT 'fact',
				confidence       REAL NOT NULL DEFAULT 1.0,
				access_count     INTEGER NOT NULL DEFAULT 0,
				created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_accessed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
				key UNINDEXED,
				content,
				tokenize='porter unicode61'
			)`,
		},
	},
	{
		version: 11,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id           TEXT PRIMARY KEY,
				created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				last_used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				expires_at   TIMESTAMP NOT NULL,
				context_json TEXT NOT NULL DEFAULT '{}'
			)`,
			`CREATE TABLE IF NOT EXISTS session_queries (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id TEXT NOT NULL REFERENCES sessions(id),
				query      TEXT NOT NULL,
				result_hashes_json TEXT NOT NULL DEFAULT '[]',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_session_queries_session ON session_queries(session_id)`,
			`CREATE TABLE IF NOT EXISTS session_seen (
				session_id    TEXT NOT NULL REFERENCES sessions(id),
				document_hash TEXT NOT NULL,
				chunk_hash    TEXT NOT NULL DEFAULT '',
				detail_level  TEXT NOT NULL DEFAULT '',
				seen_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (session_id, document_hash, chunk_hash, detail_level)
			)`,
		},
	},
}
