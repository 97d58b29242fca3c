// Package session tracks per-session UI state that must survive across
// requests, such as the one-time landing redirect.
package session

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lifehub/internal/cache"
)

// Session is owned by the Manager and shared between requests carrying the
// same session id.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	redirected atomic.Bool
}

// TakeLandingRedirect reports true exactly once per session.
func (s *Session) TakeLandingRedirect() bool {
	return s.redirected.CompareAndSwap(false, true)
}

// Manager creates sessions and expires them after a period of inactivity.
type Manager struct {
	sessions *cache.LRUCache[*Session]
	now      func() time.Time
}

func NewManager(ttl time.Duration, maxSessions int) *Manager {
	return &Manager{
		sessions: cache.NewLRUCache[*Session](maxSessions, ttl, cache.WithSlidingExpiration()),
		now:      time.Now,
	}
}

// Cache exposes the backing cache for periodic cleanup.
func (m *Manager) Cache() cache.Cleaner {
	return m.sessions
}

// Size returns the number of live sessions.
func (m *Manager) Size() int {
	return m.sessions.Size()
}

// Start opens a new session for userID.
func (m *Manager) Start(userID string) *Session {
	s := &Session{ID: uuid.NewString(), UserID: userID, CreatedAt: m.now()}
	m.sessions.Set(s.ID, s)
	return s
}

// Resolve returns the session with id when it exists and belongs to userID,
// and starts a new one otherwise. The boolean is true for a new session.
func (m *Manager) Resolve(id, userID string) (*Session, bool) {
	if id != "" {
		if s, ok := m.sessions.Get(id); ok && s.UserID == userID {
			return s, false
		}
	}
	return m.Start(userID), true
}

// End forgets the session when it belongs to userID and reports whether
// anything was removed.
func (m *Manager) End(id, userID string) bool {
	s, ok := m.sessions.Get(id)
	if !ok || s.UserID != userID {
		return false
	}
	m.sessions.Delete(id)
	return true
}
