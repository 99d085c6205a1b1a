// Package session implements the optional session-token layer: short-lived
// session ids issued after a successful DID/Bearer/Token authentication,
// which a caller may then present via a "Session" or "SessionID" header
// instead of repeating the full auth handshake.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultExpiryHours = 24

// Record is a session's state.
type Record struct {
	SessionID  string
	CallerDID  string
	TargetDID  string
	AuthMethod string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsed   time.Time
}

func (r *Record) expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Manager creates, validates, extends, and revokes sessions in memory.
// All operations are concurrency-safe.
type Manager struct {
	defaultExpiry time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*Record
}

// NewManager creates a Manager. defaultExpiry defaults to 24h when zero.
func NewManager(defaultExpiry time.Duration) *Manager {
	if defaultExpiry <= 0 {
		defaultExpiry = defaultExpiryHours * time.Hour
	}
	return &Manager{
		defaultExpiry: defaultExpiry,
		now:           func() time.Time { return time.Now().UTC() },
		sessions:      make(map[string]*Record),
	}
}

// Create issues a new session id for a successfully authenticated
// (callerDID, targetDID) pair and returns it.
func (m *Manager) Create(callerDID, targetDID, authMethod string) string {
	id := uuid.NewString()
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &Record{
		SessionID:  id,
		CallerDID:  callerDID,
		TargetDID:  targetDID,
		AuthMethod: authMethod,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.defaultExpiry),
		LastUsed:   now,
	}
	return id
}

// Validate looks up a session, deleting and reporting it as not-found if
// expired, otherwise refreshing LastUsed and returning a copy.
func (m *Manager) Validate(sessionID string) (*Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}

	now := m.now()
	if rec.expired(now) {
		delete(m.sessions, sessionID)
		return nil, false
	}

	rec.LastUsed = now
	cp := *rec
	return &cp, true
}

// Extend pushes a session's expiry forward by hours (or the manager default
// when hours <= 0). Returns false if the session does not exist.
func (m *Manager) Extend(sessionID string, hours int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return false
	}

	dur := m.defaultExpiry
	if hours > 0 {
		dur = time.Duration(hours) * time.Hour
	}
	rec.ExpiresAt = m.now().Add(dur)
	return true
}

// Revoke deletes a session outright.
func (m *Manager) Revoke(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// CleanupExpired removes every expired session and returns the count removed.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, rec := range m.sessions {
		if rec.expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}
