package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperengineering/rigbuild/internal/build"
	"github.com/hyperengineering/rigbuild/internal/catalog"
)

// Manager owns the live sessions. Sessions are created on demand, loaded
// from the session table on first access and dropped from memory by Sweep.
type Manager struct {
	persist catalog.SessionStore

	mu       sync.RWMutex
	sessions map[string]*Session

	now func() time.Time
}

// NewManager creates a manager that persists sessions to persist.
func NewManager(persist catalog.SessionStore) *Manager {
	return &Manager{
		persist:  persist,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a new session with an empty build and stores it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	st := build.New()

	data, err := st.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode new session: %w", err)
	}
	if err := m.persist.SaveSession(ctx, id, data); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	sess := m.attach(id, st)
	m.mu.Unlock()

	slog.Info("session created",
		"component", "session",
		"action", "session_created",
		"session_id", id,
	)

	return sess, nil
}

// Get returns the session for id, loading it if necessary.
// Returns ErrSessionNotFound if it was never created or has been purged.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	// Fast path: already loaded
	m.mu.RLock()
	if sess, ok := m.sessions[id]; ok {
		m.mu.RUnlock()
		sess.TouchAccessed(m.now())
		return sess, nil
	}
	m.mu.RUnlock()

	// Slow path: load from the session table
	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if sess, ok := m.sessions[id]; ok {
		sess.TouchAccessed(m.now())
		return sess, nil
	}

	data, err := m.persist.LoadSession(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session %q: %w", id, err)
	}

	st, err := build.Restore(data)
	if err != nil {
		// A corrupt blob starts the session over rather than locking the user out.
		slog.Warn("session state unreadable, starting empty",
			"component", "session",
			"session_id", id,
			"error", err,
		)
	}

	sess := m.attach(id, st)

	slog.Info("session loaded",
		"component", "session",
		"action", "session_loaded",
		"session_id", id,
	)

	return sess, nil
}

// Delete drops a session from memory and from the session table.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}

	m.mu.Lock()
	if sess, ok := m.sessions[id]; ok {
		sess.unsubscribe()
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if err := m.persist.DeleteSession(ctx, id); err != nil {
		return err
	}

	slog.Info("session deleted",
		"component", "session",
		"action", "session_deleted",
		"session_id", id,
	)
	return nil
}

// Count returns the number of sessions held in memory.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepResult reports what a sweep removed.
type SweepResult struct {
	// Evicted is the number of sessions dropped from memory.
	Evicted int
	// Purged is the number of stored sessions deleted.
	Purged int64
}

// Sweep evicts sessions idle longer than idleTTL from memory and purges
// stored sessions that have not been written for as long. The registry
// stays locked through the purge so a concurrent Get cannot rehydrate a
// session whose row is about to be deleted.
func (m *Manager) Sweep(ctx context.Context, idleTTL time.Duration) (SweepResult, error) {
	cutoff := m.now().Add(-idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	var res SweepResult
	var live []string
	for id, sess := range m.sessions {
		if sess.idleSince(cutoff) {
			sess.unsubscribe()
			delete(m.sessions, id)
			res.Evicted++
			continue
		}
		live = append(live, id)
	}

	// Sessions still in memory are kept even if only read recently.
	purged, err := m.persist.PurgeSessions(ctx, cutoff, live)
	if err != nil {
		return res, err
	}
	res.Purged = purged
	return res, nil
}

// Close detaches every live session. State is already persisted.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sess := range m.sessions {
		sess.unsubscribe()
		delete(m.sessions, id)
	}
}

// attach registers st as session id and writes it back on every change.
// Callers hold m.mu.
func (m *Manager) attach(id string, st *build.Store) *Session {
	sess := &Session{ID: id, Store: st}
	sess.TouchAccessed(m.now())
	sess.unsubscribe = st.Subscribe(func(ev build.Event) {
		m.save(sess, ev)
	})
	m.sessions[id] = sess
	return sess
}

func (m *Manager) save(sess *Session, ev build.Event) {
	sess.persistMu.Lock()
	defer sess.persistMu.Unlock()

	data, err := sess.Store.Encode()
	if err != nil {
		slog.Error("encode session state",
			"component", "session",
			"session_id", sess.ID,
			"action", string(ev.Action),
			"error", err,
		)
		return
	}
	if err := m.persist.SaveSession(context.Background(), sess.ID, data); err != nil {
		slog.Error("persist session state",
			"component", "session",
			"session_id", sess.ID,
			"action", string(ev.Action),
			"error", err,
		)
	}
}
