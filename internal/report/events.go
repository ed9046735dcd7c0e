package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventImport    EventType = "import"
	EventSkip      EventType = "skip"
	EventDuplicate EventType = "duplicate"
	EventOpen      EventType = "open"
	EventFinish    EventType = "finish"
	EventDelete    EventType = "delete"
	EventReset     EventType = "reset"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel converts a config string to an EventLevel, defaulting to info
func ParseLevel(s string) EventLevel {
	l := EventLevel(s)
	if _, ok := levelPriority[l]; ok {
		return l
	}
	return LevelInfo
}

// Event is one line of the audit log
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	BookID    string            `json:"book_id,omitempty"`
	Title     string            `json:"title,omitempty"`
	SrcPath   string            `json:"src_path,omitempty"`
	Format    string            `json:"format,omitempty"`
	SizeBytes int64             `json:"size_bytes,omitempty"`
	Percent   int               `json:"percent,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Append so two commands started in the same second share a file
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogImport logs a successfully imported book
func (l *EventLogger) LogImport(bookID, title, srcPath, format string, sizeBytes int64, duration time.Duration) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventImport,
		BookID:    bookID,
		Title:     title,
		SrcPath:   srcPath,
		Format:    format,
		SizeBytes: sizeBytes,
		Duration:  duration.Milliseconds(),
	})
}

// LogSkip logs a file that was not imported, such as an unsupported format
func (l *EventLogger) LogSkip(srcPath, reason string) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventSkip,
		SrcPath: srcPath,
		Reason:  reason,
	})
}

// LogDuplicate logs a re-import of bytes already in the library
func (l *EventLogger) LogDuplicate(bookID, title, srcPath string) error {
	return l.Log(&Event{
		Level:   LevelWarning,
		Event:   EventDuplicate,
		BookID:  bookID,
		Title:   title,
		SrcPath: srcPath,
	})
}

// LogOpen logs a book being opened for reading
func (l *EventLogger) LogOpen(bookID, title string, percent int) error {
	return l.Log(&Event{
		Level:   LevelDebug,
		Event:   EventOpen,
		BookID:  bookID,
		Title:   title,
		Percent: percent,
	})
}

// LogFinish logs the first time a book reaches completion
func (l *EventLogger) LogFinish(bookID, title string) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventFinish,
		BookID:  bookID,
		Title:   title,
		Percent: 100,
	})
}

// LogDelete logs a book removed from the library
func (l *EventLogger) LogDelete(bookID, title string) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventDelete,
		BookID: bookID,
		Title:  title,
	})
}

// LogReset logs a full library wipe
func (l *EventLogger) LogReset(books int) error {
	return l.Log(&Event{
		Level: LevelWarning,
		Event: EventReset,
		Extra: map[string]string{
			"books": fmt.Sprintf("%d", books),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, srcPath string, err error) error {
	return l.Log(&Event{
		Level:   LevelError,
		Event:   event,
		SrcPath: srcPath,
		Error:   err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
