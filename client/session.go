// Package client provides client-side utilities for talking to an
// authbase server: a typed API client, local session persistence and an
// http.RoundTripper that signs requests with the stored session.
package client

import (
	"sync"
	"time"
)

// StoredSession is the locally persisted outcome of a login: the bearer
// token plus enough identity to label it in listings. At most one
// session exists per server; a new login replaces the old session.
type StoredSession struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id,omitempty"`
	UserEmail string    `json:"user_email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	SavedAt   time.Time `json:"saved_at"`
}

// Expired reports whether the session token is past its expiry.
func (s *StoredSession) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// ExpiresWithin reports whether the token expires inside the given
// window, e.g. to prompt for a re-login before it actually lapses.
func (s *StoredSession) ExpiresWithin(window time.Duration) bool {
	return time.Now().Add(window).After(s.ExpiresAt)
}

// SessionStore persists one session per server URL.
type SessionStore interface {
	// Load returns the session for the server, or (nil, nil) when none
	// is stored.
	Load(serverURL string) (*StoredSession, error)

	// Store saves the session for the server, replacing any earlier one.
	Store(serverURL string, session *StoredSession) error

	// Drop removes the server's session. Dropping an absent session is
	// a no-op.
	Drop(serverURL string) error

	// Servers lists the server URLs with a stored session.
	Servers() ([]string, error)
}

// MemorySessionStore keeps sessions in memory only. Useful for tests
// and short-lived programs.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*StoredSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*StoredSession)}
}

func (s *MemorySessionStore) Load(serverURL string) (*StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[serverURL], nil
}

func (s *MemorySessionStore) Store(serverURL string, session *StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[serverURL] = session
	return nil
}

func (s *MemorySessionStore) Drop(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, serverURL)
	return nil
}

func (s *MemorySessionStore) Servers() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sessions))
	for server := range s.sessions {
		out = append(out, server)
	}
	return out, nil
}
