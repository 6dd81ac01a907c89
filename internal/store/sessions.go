package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// --- sessions ---
//
// All operations are transactional at the single-statement level; SQLite's
// own locking (one writer, WAL readers) gives the rest for free the same
// way it does for the document/chunk tables.

func (s *SQLiteStore) CreateSession(ctx context.Context, id string, ttl time.Duration) (*Session, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, created_at, last_used_at, expires_at, context_json)
		VALUES (?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?, '{}')
	`, id, expiresAt)
	if err != nil {
		return nil, err
	}
	return &Session{ID: id, CreatedAt: now, LastUsedAt: now, ExpiresAt: expiresAt, Context: map[string]string{}}, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, last_used_at, expires_at, context_json FROM sessions WHERE id = ?
	`, id)
	sess := &Session{}
	var ctxJSON string
	if err := row.Scan(&sess.ID, &sess.CreatedAt, &sess.LastUsedAt, &sess.ExpiresAt, &ctxJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sess.Context = map[string]string{}
	if ctxJSON != "" {
		_ = json.Unmarshal([]byte(ctxJSON), &sess.Context)
	}
	return sess, nil
}

func (s *SQLiteStore) TouchSession(ctx context.Context, id string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_used_at = CURRENT_TIMESTAMP, expires_at = ? WHERE id = ?
	`, time.Now().Add(ttl), id)
	return err
}

func (s *SQLiteStore) SetSessionContext(ctx context.Context, id, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var ctxJSON string
	if err := tx.QueryRowContext(ctx, "SELECT context_json FROM sessions WHERE id = ?", id).Scan(&ctxJSON); err != nil {
		if err == sql.ErrNoRows {
			return ErrInvariantViolation{Reason: "set_context on unknown session " + id}
		}
		return err
	}

	kv := map[string]string{}
	if ctxJSON != "" {
		_ = json.Unmarshal([]byte(ctxJSON), &kv)
	}
	kv[key] = value

	b, err := json.Marshal(kv)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET context_json = ? WHERE id = ?", string(b), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetSessionContext(ctx context.Context, id string) (map[string]string, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrInvariantViolation{Reason: "get_context on unknown session " + id}
	}
	return sess.Context, nil
}

func (s *SQLiteStore) LogSessionQuery(ctx context.Context, id, query string, topHashes []string) error {
	b, err := marshalStrings(topHashes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_queries(session_id, query, result_hashes_json) VALUES (?, ?, ?)
	`, id, query, b)
	return err
}

func (s *SQLiteStore) MarkSessionSeen(ctx context.Context, id, docHash, chunkHash string, detail DetailLevel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_seen(session_id, document_hash, chunk_hash, detail_level) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, document_hash, chunk_hash, detail_level) DO UPDATE SET seen_at = CURRENT_TIMESTAMP
	`, id, docHash, chunkHash, string(detail))
	return err
}

func (s *SQLiteStore) SessionSeenHashes(ctx context.Context, id string) (map[string]bool, map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_hash, chunk_hash FROM session_seen WHERE session_id = ?
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	docs := map[string]bool{}
	chunks := map[string]bool{}
	for rows.Next() {
		var docHash, chunkHash string
		if err := rows.Scan(&docHash, &chunkHash); err != nil {
			return nil, nil, err
		}
		if docHash != "" {
			docs[docHash] = true
		}
		if chunkHash != "" {
			chunks[chunkHash] = true
		}
	}
	return docs, chunks, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM session_seen WHERE session_id = ?",
		"DELETE FROM session_queries WHERE session_id = ?",
		"DELETE FROM sessions WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id FROM sessions WHERE expires_at < CURRENT_TIMESTAMP")
	if err != nil {
		return 0, err
	}
	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		expired = append(expired, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range expired {
		for _, stmt := range []string{
			"DELETE FROM session_seen WHERE session_id = ?",
			"DELETE FROM session_queries WHERE session_id = ?",
			"DELETE FROM sessions WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return 0, err
			}
		}
	}
	return len(expired), tx.Commit()
}
