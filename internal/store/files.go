package store

import (
	"context"
	"database/sql"
	"fmt"
)

// PutFile inserts or replaces the bytes of a book
func (s *Store) PutFile(ctx context.Context, f *File) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (book_id, data, mime_type) VALUES (?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			data = excluded.data,
			mime_type = excluded.mime_type
		`, f.BookID, f.Data, f.MimeType)

	if err != nil {
		return fmt.Errorf("failed to put file: %w", err)
	}
	return nil
}

// GetFile retrieves a book's bytes, or nil when there is no file row
func (s *Store) GetFile(ctx context.Context, bookID string) (*File, error) {
	f := &File{}
	err := s.db.QueryRowContext(ctx,
		"SELECT book_id, data, mime_type FROM files WHERE book_id = ?", bookID,
	).Scan(&f.BookID, &f.Data, &f.MimeType)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// HasFile reports whether a file row exists without loading its bytes
func (s *Store) HasFile(ctx context.Context, bookID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE book_id = ?", bookID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check file: %w", err)
	}
	return n > 0, nil
}

// DeleteFile removes a book's bytes
func (s *Store) DeleteFile(ctx context.Context, bookID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE book_id = ?", bookID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
