package store

import (
	"context"
	"database/sql"
)

// --- memories ---

func (s *SQLiteStore) UpsertMemory(ctx context.Context, m *Memory) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	confidence := m.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	category := m.Category
	if category == "" {
		category = MemoryFact
	}

	var existingID int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM memories WHERE key = ?", m.ContentHash).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	if err == nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE memories SET access_count = access_count + 1, last_accessed_at = CURRENT_TIMESTAMP WHERE id = ?
		`, existingID); err != nil {
			return 0, err
		}
		return existingID, tx.Commit()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO memories(key, content, category, confidence) VALUES (?, ?, ?, ?)
	`, m.ContentHash, m.Content, string(category), confidence)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO memories_fts(key, content) VALUES (?, ?)", m.ContentHash, m.Content); err != nil {
		return 0, err
	}

	return id, tx.Commit()
}

func (s *SQLiteStore) GetMemory(ctx context.Context, id int64) (*Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, category, confidence, key, access_count, created_at, last_accessed_at
		FROM memories WHERE id = ?
	`, id)
	m := &Memory{}
	var category string
	if err := row.Scan(&m.ID, &m.Content, &category, &m.Confidence, &m.ContentHash, &m.AccessCount, &m.CreatedAt, &m.LastAccessedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m.Category = MemoryCategory(category)
	return m, nil
}

func (s *SQLiteStore) TouchMemory(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE memories SET access_count = access_count + 1, last_accessed_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id)
	return err
}

func (s *SQLiteStore) SearchMemoriesFTS(ctx context.Context, query string, limit int) ([]*FTSMemoryHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, bm25(memories_fts, 1.0) AS score
		FROM memories_fts
		JOIN memories m ON m.key = memories_fts.key
		WHERE memories_fts MATCH ? ORDER BY score LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FTSMemoryHit
	for rows.Next() {
		h := &FTSMemoryHit{}
		if err := rows.Scan(&h.ID, &h.RawScore); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteMemory(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var key string
	if err := tx.QueryRowContext(ctx, "SELECT key FROM memories WHERE id = ?", id).Scan(&key); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM memories_fts WHERE key = ?", key); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}
