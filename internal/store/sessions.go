package store

import (
	"context"
	"fmt"
)

// PutSession appends a reading session
func (s *Store) PutSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, book_id, started_at, ended_at, start_percent, end_percent, pages)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`, sess.ID, sess.BookID, sess.StartedAt, sess.EndedAt, sess.StartPercent, sess.EndPercent, sess.Pages)

	if err != nil {
		return fmt.Errorf("failed to put session: %w", err)
	}
	return nil
}

// ListSessionsByBook returns a book's sessions, oldest first
func (s *Store) ListSessionsByBook(ctx context.Context, bookID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, started_at, ended_at, start_percent, end_percent, pages
		FROM sessions WHERE book_id = ?
		ORDER BY started_at, id
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		err := rows.Scan(&sess.ID, &sess.BookID, &sess.StartedAt, &sess.EndedAt,
			&sess.StartPercent, &sess.EndPercent, &sess.Pages)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}

// DeleteSessionsByBook removes all sessions of a book
func (s *Store) DeleteSessionsByBook(ctx context.Context, bookID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE book_id = ?", bookID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}
