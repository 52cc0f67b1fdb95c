package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// LoadSession returns the stored state blob for a session.
func (s *SQLiteCatalog) LoadSession(ctx context.Context, id string) ([]byte, error) {
	var state string
	err := s.db.QueryRowContext(ctx, "SELECT state FROM sessions WHERE id = ?", id).Scan(&state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return []byte(state), nil
}

// SaveSession writes the whole state blob, replacing any previous one.
func (s *SQLiteCatalog) SaveSession(ctx context.Context, id string, state []byte) error {
	nowStr := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, state, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, id, string(state), nowStr, nowStr)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// DeleteSession removes a session. Deleting an unknown session is not an error.
func (s *SQLiteCatalog) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeSessions deletes sessions not written since olderThan, except the
// ids in keep, and reports how many were removed.
func (s *SQLiteCatalog) PurgeSessions(ctx context.Context, olderThan time.Time, keep []string) (int64, error) {
	query := "DELETE FROM sessions WHERE updated_at < ?"
	args := []any{olderThan.UTC().Format(time.RFC3339)}
	if len(keep) > 0 {
		query += " AND id NOT IN (?" + strings.Repeat(", ?", len(keep)-1) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
