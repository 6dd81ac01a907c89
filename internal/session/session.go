// Package session provides the per-query session: a UUID-keyed scope with
// a TTL, a key-value context bag, a query log, and a seen-hash dedup set.
// The session is Store-backed and exists purely to make a sequence of
// retrieval calls aware of what it has already shown the caller.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agentroot/agentroot/internal/store"
)

// DefaultTTL is the session lifetime applied when a caller does not specify
// one.
const DefaultTTL = 30 * time.Minute

// Manager is the session lifecycle operations surface:
// create, get, touch, set/get context, log_query, mark_seen, seen_hashes,
// cleanup_expired, delete. All operations defer to store.Store so they are
// transactional the same way document/chunk writes are.
type Manager struct {
	store store.Store
	ttl   time.Duration
}

// NewManager creates a session manager backed by s, using ttl as the
// default for Create when the caller passes zero.
func NewManager(s store.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: s, ttl: ttl}
}

// Create starts a new session with the given ttl (the manager's default if
// zero).
func (m *Manager) Create(ctx context.Context, ttl time.Duration) (*store.Session, error) {
	if ttl <= 0 {
		ttl = m.ttl
	}
	return m.store.CreateSession(ctx, uuid.NewString(), ttl)
}

// Get retrieves a session by ID. Returns (nil, nil) if it doesn't exist or
// has expired past its TTL -- a session is invalid past TTL even if not yet
// deleted.
func (m *Manager) Get(ctx context.Context, id string) (*store.Session, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil || sess == nil {
		return sess, err
	}
	if sess.Expired(time.Now()) {
		return nil, nil
	}
	return sess, nil
}

// Touch extends a session's expiry by ttl (the manager's default if zero)
// from now, and bumps last_used_at.
func (m *Manager) Touch(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	return m.store.TouchSession(ctx, id, ttl)
}

// SetContext stores a key-value pair in the session's context bag.
func (m *Manager) SetContext(ctx context.Context, id, key, value string) error {
	return m.store.SetSessionContext(ctx, id, key, value)
}

// GetContext returns the session's full context bag.
func (m *Manager) GetContext(ctx context.Context, id string) (map[string]string, error) {
	return m.store.GetSessionContext(ctx, id)
}

// LogQuery records a query and its top-K result hashes against the session.
func (m *Manager) LogQuery(ctx context.Context, id, query string, topHashes []string) error {
	return m.store.LogSessionQuery(ctx, id, query, topHashes)
}

// MarkSeen records that a document (and optionally a specific chunk, at a
// detail level) has been surfaced to the caller in this session.
func (m *Manager) MarkSeen(ctx context.Context, id, docHash, chunkHash string, detail store.DetailLevel) error {
	return m.store.MarkSessionSeen(ctx, id, docHash, chunkHash, detail)
}

// SeenHashes returns the document and chunk hashes already surfaced in this
// session, for demotion/dedup in internal/search.
func (m *Manager) SeenHashes(ctx context.Context, id string) (docHashes, chunkHashes map[string]bool, err error) {
	return m.store.SessionSeenHashes(ctx, id)
}

// Delete removes a session and all of its logged queries/seen rows.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.DeleteSession(ctx, id)
}

// CleanupExpired removes every session whose TTL has elapsed, returning the
// count removed. Intended to run lazily on session_start and explicitly on
// session_end.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	return m.store.CleanupExpiredSessions(ctx)
}
