package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/shelf/internal/format"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	currentSchemaVersion = 2
)

// Store is the persistent library: books, their file bytes, covers,
// reading sessions and the reading goal.
type Store struct {
	db *sql.DB
}

// OpenOptions holds options for opening a database
type OpenOptions struct {
	NetworkOptimized bool // Apply network-optimized pragmas
}

// Open opens or creates a SQLite database at the given path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates a SQLite database with custom options
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}

	if opts.NetworkOptimized {
		if err := store.applyNetworkPragmas(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply network pragmas: %w", err)
		}
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return store, nil
}

// applyNetworkPragmas applies SQLite optimizations for network filesystems
func (s *Store) applyNetworkPragmas() error {
	pragmas := []string{
		// NORMAL is safe with WAL; fsync only at checkpoints
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		// Negative value = KB (~64 MB)
		"PRAGMA cache_size = -64000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity() error {
	var result string
	err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// migrate applies database migrations
func (s *Store) migrate() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if version < 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if err := s.setSchemaVersion(tx, 1); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	// v2: listing and session indexes
	if version < 2 {
		if _, err := tx.Exec(schemaV2); err != nil {
			return fmt.Errorf("failed to apply schema v2: %w", err)
		}
		if err := s.setSchemaVersion(tx, 2); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Store) getSchemaVersion() (int, error) {
	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion records a schema version in a transaction
func (s *Store) setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// Transaction executes a function within a transaction
func (s *Store) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Status is a book's reading status. Transitions only move forward.
type Status string

const (
	StatusWantToRead Status = "want-to-read"
	StatusReading    Status = "reading"
	StatusFinished   Status = "finished"
)

var statusRank = map[Status]int{
	StatusWantToRead: 0,
	StatusReading:    1,
	StatusFinished:   2,
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Before reports whether s precedes other in the reading lifecycle
func (s Status) Before(other Status) bool {
	return statusRank[s] < statusRank[other]
}

// ParseStatus accepts the stored form and a few CLI spellings
func ParseStatus(v string) (Status, error) {
	switch v {
	case "want-to-read", "want", "unread":
		return StatusWantToRead, nil
	case "reading":
		return StatusReading, nil
	case "finished", "done":
		return StatusFinished, nil
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// Book is one library entry. ID is the hex SHA-1 of the file bytes.
type Book struct {
	ID         string
	Title      string
	Author     string
	Format     format.Format
	Cover      string // external reference or cover://<id>
	Status     Status
	Percent    int
	Position   string // reader-specific resume token
	Filename   string
	SizeBytes  int64
	LastReadAt time.Time // zero until first opened
	AddedAt    time.Time
}

// Clone returns a copy safe to hand to another goroutine
func (b *Book) Clone() *Book {
	c := *b
	return &c
}

// File holds the raw bytes of a book
type File struct {
	BookID   string
	Data     []byte
	MimeType string
}

// Cover is a cached cover image
type Cover struct {
	BookID   string
	Data     []byte
	MimeType string
	Source   string
}

// Session is one open/close span of reading
type Session struct {
	ID           string
	BookID       string
	StartedAt    time.Time
	EndedAt      time.Time
	StartPercent int
	EndPercent   int
	Pages        int // position changes seen during the session
}

// Goal is the reading goal and streak singleton
type Goal struct {
	DailyTarget         int // minutes
	CurrentStreak       int
	LongestStreak       int
	LastReadDate        string // YYYY-MM-DD, empty before the first read
	TotalBooksCompleted int
	TotalTimeRead       time.Duration
}
