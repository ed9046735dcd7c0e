package store

// Schema v1 - Initial database schema
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Library entries, id is the SHA-1 of the file bytes
CREATE TABLE IF NOT EXISTS books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  author TEXT NOT NULL DEFAULT '',
  format TEXT NOT NULL,
  cover TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'want-to-read',
  percent INTEGER NOT NULL DEFAULT 0,
  position TEXT NOT NULL DEFAULT '',
  filename TEXT NOT NULL DEFAULT '',
  size_bytes INTEGER NOT NULL DEFAULT 0,
  last_read_at DATETIME,
  added_at DATETIME NOT NULL
);

-- Raw file bytes (one row per book)
CREATE TABLE IF NOT EXISTS files (
  book_id TEXT PRIMARY KEY REFERENCES books(id) ON DELETE CASCADE,
  data BLOB NOT NULL,
  mime_type TEXT NOT NULL DEFAULT ''
);

-- Cached cover images
CREATE TABLE IF NOT EXISTS covers (
  book_id TEXT PRIMARY KEY REFERENCES books(id) ON DELETE CASCADE,
  data BLOB NOT NULL,
  mime_type TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT ''
);

-- Reading sessions, append-only
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
  started_at DATETIME NOT NULL,
  ended_at DATETIME NOT NULL,
  start_percent INTEGER NOT NULL DEFAULT 0,
  end_percent INTEGER NOT NULL DEFAULT 0,
  pages INTEGER NOT NULL DEFAULT 0
);

-- Reading goal singleton
CREATE TABLE IF NOT EXISTS goal (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  daily_target INTEGER NOT NULL DEFAULT 0,
  current_streak INTEGER NOT NULL DEFAULT 0,
  longest_streak INTEGER NOT NULL DEFAULT 0,
  last_read_date TEXT NOT NULL DEFAULT '',
  total_books_completed INTEGER NOT NULL DEFAULT 0,
  total_time_read_sec INTEGER NOT NULL DEFAULT 0
);
`

// Schema v2 - Listing and session indexes
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_books_status ON books(status);
CREATE INDEX IF NOT EXISTS idx_books_last_read ON books(last_read_at, added_at);
CREATE INDEX IF NOT EXISTS idx_sessions_book_id ON sessions(book_id, started_at);
`
