package store

import (
	"context"
	"database/sql"
	"encoding/json"
)

// --- concepts / glossary ---

func (s *SQLiteStore) UpsertConcept(ctx context.Context, term, snippet string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO concepts(term, snippet) VALUES (?, ?)
		ON CONFLICT(term) DO UPDATE SET snippet=excluded.snippet
	`, term, snippet)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM concepts WHERE term = ?", term).Scan(&id); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM concepts_fts WHERE term = ?", term); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO concepts_fts(term, snippet) VALUES (?, ?)", term, snippet); err != nil {
		return 0, err
	}

	return id, tx.Commit()
}

func (s *SQLiteStore) GetConceptByTerm(ctx context.Context, term string) (*Concept, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, term, snippet FROM concepts WHERE term = ?", term)
	c := &Concept{}
	if err := row.Scan(&c.ID, &c.Term, &c.Snippet); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStore) LinkConceptChunk(ctx context.Context, conceptID int64, chunkHash, snippet string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO concept_chunks(concept_id, chunk_hash, snippet) VALUES (?, ?, ?)
		ON CONFLICT(concept_id, chunk_hash) DO UPDATE SET snippet=excluded.snippet
	`, conceptID, chunkHash, snippet)
	return err
}

func (s *SQLiteStore) SearchConceptsFTS(ctx context.Context, query string, limit int) ([]*FTSConceptHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.term, bm25(concepts_fts, 2.0, 1.0) AS score
		FROM concepts_fts
		JOIN concepts c ON c.term = concepts_fts.term
		WHERE concepts_fts MATCH ? ORDER BY score LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FTSConceptHit
	for rows.Next() {
		h := &FTSConceptHit{}
		if err := rows.Scan(&h.ConceptID, &h.Term, &h.RawScore); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ChunksForConcept(ctx context.Context, conceptID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT chunk_hash FROM concept_chunks WHERE concept_id = ?", conceptID)
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

// --- directories ---

func (s *SQLiteStore) UpsertDirectory(ctx context.Context, d *Directory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	conceptsJSON, err := marshalStrings(d.Concepts)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO directories(collection, path, depth, file_count, child_dir_count, summary, dominant_language, dominant_category, concepts_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, path) DO UPDATE SET
			depth=excluded.depth, file_count=excluded.file_count, child_dir_count=excluded.child_dir_count,
			summary=excluded.summary, dominant_language=excluded.dominant_language,
			dominant_category=excluded.dominant_category, concepts_json=excluded.concepts_json, updated_at=CURRENT_TIMESTAMP
	`, d.Collection, d.Path, d.Depth, d.FileCount, d.ChildDirCount, d.Summary, d.DominantLanguage, d.DominantCategory, conceptsJSON); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM directories_fts WHERE collection = ? AND path = ?", d.Collection, d.Path); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO directories_fts(collection, path, summary) VALUES (?, ?, ?)", d.Collection, d.Path, d.Summary); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetDirectory(ctx context.Context, collection, path string) (*Directory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, path, depth, file_count, child_dir_count, summary, dominant_language, dominant_category, concepts_json, updated_at
		FROM directories WHERE collection = ? AND path = ?
	`, collection, path)
	return scanDirectory(row)
}

func (s *SQLiteStore) ListDirectories(ctx context.Context, collection string) ([]*Directory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, path, depth, file_count, child_dir_count, summary, dominant_language, dominant_category, concepts_json, updated_at
		FROM directories WHERE collection = ? ORDER BY depth DESC, path
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SearchDirectoriesFTS(ctx context.Context, query string, limit int) ([]*FTSDirectoryHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT collection, path, bm25(directories_fts, 1.0) AS score
		FROM directories_fts WHERE directories_fts MATCH ? ORDER BY score LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FTSDirectoryHit
	for rows.Next() {
		h := &FTSDirectoryHit{}
		if err := rows.Scan(&h.Collection, &h.Path, &h.RawScore); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDirectory(row scanner) (*Directory, error) {
	d := &Directory{}
	var conceptsJSON string
	if err := row.Scan(&d.Collection, &d.Path, &d.Depth, &d.FileCount, &d.ChildDirCount, &d.Summary, &d.DominantLanguage, &d.DominantCategory, &conceptsJSON, &d.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.Concepts, _ = unmarshalStrings(conceptsJSON)
	return d, nil
}

func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	return string(b), err
}

func unmarshalStrings(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	err := json.Unmarshal([]byte(s), &out)
	return out, err
}
