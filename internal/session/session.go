// Package session tracks rendezvous sessions keyed by join code.
package session

import (
	"crypto/rand"
	"sync"
	"time"
)

// Session is one rendezvous keyed by its join code. Both sides of a
// transfer present the same code to find each other.
type Session struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is a thread-safe in-memory session table. Sessions appear when
// the first peer presents a code and expire after the TTL unless
// refreshed by another join.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
}

// NewStore creates a session store with the given idle lifetime.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]Session),
		ttl:      ttl,
	}
}

// GetOrCreate returns the session for code, creating it on first use.
// The expiry is pushed out on every call so an active session never
// lapses under its peers.
func (s *Store) GetOrCreate(code string) Session {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[code]
	if !ok {
		sess = Session{Code: code, CreatedAt: now}
	}
	sess.ExpiresAt = now.Add(s.ttl)
	s.sessions[code] = sess
	return sess
}

// Get looks a session up without refreshing it.
func (s *Store) Get(code string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[code]
	return sess, ok
}

// Remove deletes a session, typically once its transfer completed.
func (s *Store) Remove(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
}

// CleanupExpired removes every session whose expiry is behind now and
// returns how many were dropped.
func (s *Store) CleanupExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, code)
			removed++
		}
	}
	return removed
}

// NewCode generates a random 8-character join code. The alphabet skips
// O, 0, I and 1 so codes survive being read out loud.
func NewCode() string {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "ABCDEFGH"
	}
	for i := range b {
		b[i] = chars[b[i]%byte(len(chars))]
	}
	return string(b)
}
