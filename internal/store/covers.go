package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PutCover inserts or replaces a cached cover
func (s *Store) PutCover(ctx context.Context, c *Cover) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO covers (book_id, data, mime_type, source) VALUES (?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			data = excluded.data,
			mime_type = excluded.mime_type,
			source = excluded.source
		`, c.BookID, c.Data, c.MimeType, c.Source)

	if err != nil {
		return fmt.Errorf("failed to put cover: %w", err)
	}
	return nil
}

// GetCover retrieves a cached cover, or nil when none is stored
func (s *Store) GetCover(ctx context.Context, bookID string) (*Cover, error) {
	c := &Cover{}
	err := s.db.QueryRowContext(ctx,
		"SELECT book_id, data, mime_type, source FROM covers WHERE book_id = ?", bookID,
	).Scan(&c.BookID, &c.Data, &c.MimeType, &c.Source)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cover: %w", err)
	}
	return c, nil
}

// DeleteCover removes a cached cover
func (s *Store) DeleteCover(ctx context.Context, bookID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM covers WHERE book_id = ?", bookID); err != nil {
		return fmt.Errorf("failed to delete cover: %w", err)
	}
	return nil
}
