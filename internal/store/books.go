package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/shelf/internal/format"
)

const bookColumns = `b.id, b.title, b.author, b.format, b.cover, b.status, b.percent,
	b.position, b.filename, b.size_bytes, b.last_read_at, b.added_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	b := &Book{}
	var f, status string
	var lastRead sql.NullTime
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &f, &b.Cover, &status, &b.Percent,
		&b.Position, &b.Filename, &b.SizeBytes, &lastRead, &b.AddedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Format = format.Parse(f)
	b.Status = Status(status)
	if lastRead.Valid {
		b.LastReadAt = lastRead.Time
	}
	return b, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// PutBook inserts or replaces a book record
func (s *Store) PutBook(ctx context.Context, b *Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, format, cover, status, percent,
		                   position, filename, size_bytes, last_read_at, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			format = excluded.format,
			cover = excluded.cover,
			status = excluded.status,
			percent = excluded.percent,
			position = excluded.position,
			filename = excluded.filename,
			size_bytes = excluded.size_bytes,
			last_read_at = excluded.last_read_at
		`, b.ID, b.Title, b.Author, string(b.Format), b.Cover, string(b.Status), b.Percent,
		b.Position, b.Filename, b.SizeBytes, nullTime(b.LastReadAt), b.AddedAt)

	if err != nil {
		return fmt.Errorf("failed to put book: %w", err)
	}
	return nil
}

// GetBook retrieves a book by id, or nil when it does not exist
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books b WHERE b.id = ?`, id)
	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return b, nil
}

// GetAllBooks retrieves every book record, including any without a file
func (s *Store) GetAllBooks(ctx context.Context) ([]*Book, error) {
	return s.queryBooks(ctx, `SELECT `+bookColumns+` FROM books b ORDER BY b.added_at, b.id`)
}

// ListBooks returns books that have a file row, most recently read
// first, then most recently added. An empty status matches all.
func (s *Store) ListBooks(ctx context.Context, status Status) ([]*Book, error) {
	query := `SELECT ` + bookColumns + `
		FROM books b
		JOIN files f ON f.book_id = b.id
		WHERE (? = '' OR b.status = ?)
		ORDER BY b.last_read_at IS NULL, b.last_read_at DESC, b.added_at DESC, b.id`
	return s.queryBooks(ctx, query, string(status), string(status))
}

func (s *Store) queryBooks(ctx context.Context, query string, args ...any) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, b)
	}

	return books, rows.Err()
}

// DeleteBook removes a book with its file, cover and sessions
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"DELETE FROM sessions WHERE book_id = ?",
			"DELETE FROM covers WHERE book_id = ?",
			"DELETE FROM files WHERE book_id = ?",
			"DELETE FROM books WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("failed to delete book: %w", err)
			}
		}
		return nil
	})
}

// CountBooksByStatus returns the number of listable books per status
func (s *Store) CountBooksByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.status, COUNT(*) FROM books b
		JOIN files f ON f.book_id = b.id
		GROUP BY b.status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}
