// Package session keeps one build store per browser session, loading them
// lazily from the session table and writing every change back.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/rigbuild/internal/build"
)

var (
	// ErrInvalidSessionID indicates a session ID is not a UUID.
	ErrInvalidSessionID = errors.New("invalid session ID")
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
)

// ValidateID reports whether id is a well-formed session ID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// Session is a live build store plus access tracking.
type Session struct {
	ID    string
	Store *build.Store

	mu           sync.Mutex
	lastAccessed time.Time
	unsubscribe  func()

	// persistMu orders writes so the last save always carries the newest state.
	persistMu sync.Mutex
}

// TouchAccessed records an access at t.
func (s *Session) TouchAccessed(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessed = t
}

// LastAccessed returns the time of the most recent access.
func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}

// idleSince reports whether the session has not been touched since cutoff.
func (s *Session) idleSince(cutoff time.Time) bool {
	return s.LastAccessed().Before(cutoff)
}
