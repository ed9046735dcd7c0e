package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/franz/shelf/internal/format"
	"github.com/franz/shelf/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func addBook(t *testing.T, db *store.Store, b *store.Book) {
	t.Helper()
	ctx := context.Background()
	if err := db.PutBook(ctx, b); err != nil {
		t.Fatalf("PutBook failed: %v", err)
	}
	if err := db.PutFile(ctx, &store.File{BookID: b.ID, Data: []byte("x"), MimeType: "text/plain"}); err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}
}

func TestGenerateSummaryReport(t *testing.T) {
	db := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	addBook(t, db, &store.Book{ID: "a", Title: "Dune", Author: "Frank Herbert", Format: format.EPUB,
		Status: store.StatusReading, Percent: 40, SizeBytes: 1000, LastReadAt: now, AddedAt: now})
	addBook(t, db, &store.Book{ID: "b", Title: "Manual", Author: "Unknown Author", Format: format.PDF,
		Status: store.StatusWantToRead, SizeBytes: 2000, AddedAt: now})
	addBook(t, db, &store.Book{ID: "c", Title: "Notes", Author: "Me", Format: format.Text,
		Status: store.StatusFinished, Percent: 100, SizeBytes: 500, LastReadAt: now.Add(-time.Hour), AddedAt: now})

	logDir := t.TempDir()
	logger, err := NewEventLogger(logDir, LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	logger.LogImport("a", "Dune", "/b/dune.epub", "epub", 1000, 0)
	logger.LogImport("b", "Manual", "/b/manual.pdf", "pdf", 2000, 0)
	logger.LogDuplicate("a", "Dune", "/b/copy.epub")
	logger.LogSkip("/b/x.docx", "unsupported format")
	logger.LogFinish("c", "Notes")
	logger.Close()

	report, err := GenerateSummaryReport(ctx, db, logger.Path())
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}

	if report.Books != 3 {
		t.Errorf("Expected 3 books, got %d", report.Books)
	}
	if report.ByStatus[store.StatusReading] != 1 || report.ByStatus[store.StatusFinished] != 1 {
		t.Errorf("Unexpected status counts: %v", report.ByStatus)
	}
	if report.ByFormat[format.PDF] != 1 {
		t.Errorf("Unexpected format counts: %v", report.ByFormat)
	}
	if report.TotalBytes != 3500 {
		t.Errorf("Expected 3500 bytes, got %d", report.TotalBytes)
	}
	if len(report.Reading) != 1 || report.Reading[0].Title != "Dune" {
		t.Errorf("Unexpected currently reading list: %+v", report.Reading)
	}
	if report.Imported != 2 || report.Duplicates != 1 || report.Skipped != 1 || report.Finished != 1 {
		t.Errorf("Unexpected activity counts: %+v", report)
	}
	if report.Goal.DailyTarget != store.DefaultDailyTarget {
		t.Errorf("Expected default daily target, got %d", report.Goal.DailyTarget)
	}
}

func TestGenerateSummaryReport_MissingLog(t *testing.T) {
	db := openTestStore(t)
	_, err := GenerateSummaryReport(context.Background(), db, filepath.Join(t.TempDir(), "nope.jsonl"))
	if err == nil {
		t.Error("Expected error for missing event log")
	}
}

func TestGatherTopErrors(t *testing.T) {
	if got := gatherTopErrors(nil, 10); len(got) != 0 {
		t.Errorf("Expected 0 errors from no events, got %d", len(got))
	}

	var events []Event
	testErrors := []struct {
		msg   string
		count int
	}{
		{"corrupt file", 3},
		{"file too large", 2},
		{"permission denied", 1},
	}
	for _, te := range testErrors {
		for i := 0; i < te.count; i++ {
			events = append(events, Event{Level: LevelError, Event: EventImport, Error: te.msg})
		}
	}
	events = append(events, Event{Level: LevelInfo, Event: EventImport})

	topErrors := gatherTopErrors(events, 10)
	if len(topErrors) != 3 {
		t.Fatalf("Expected 3 unique errors, got %d", len(topErrors))
	}
	for i, te := range testErrors {
		if topErrors[i].Error != te.msg || topErrors[i].Count != te.count {
			t.Errorf("Position %d: got %q x%d, want %q x%d", i, topErrors[i].Error, topErrors[i].Count, te.msg, te.count)
		}
	}

	if got := gatherTopErrors(events, 1); len(got) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(got))
	}
}

func TestReadEventsSkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"ts":"2024-01-01T00:00:00Z","level":"info","event":"import","book_id":"a"}
not json
{"ts":"2024-01-01T00:00:01Z","level":"info","event":"finish","book_id":"a"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	if len(events) != 2 || events[1].Event != EventFinish {
		t.Errorf("Unexpected events: %+v", events)
	}
}

func TestTruncateText(t *testing.T) {
	testCases := []struct {
		name   string
		text   string
		maxLen int
	}{
		{"Short title - no truncation", "Dune", 50},
		{"Long title - truncate middle", "The Extremely Long and Winding Title of a Victorian Novel in Three Volumes", 30},
		{"Exactly at limit", "Sixteen chars!!!", 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := truncateText(tc.text, tc.maxLen)

			if len(result) > tc.maxLen {
				t.Errorf("Result length %d exceeds maxLen %d", len(result), tc.maxLen)
			}
			if len(tc.text) > tc.maxLen && !strings.Contains(result, "...") {
				t.Error("Expected truncated text to contain '...'")
			}
			if len(tc.text) <= tc.maxLen && result != tc.text {
				t.Errorf("Short text should not be truncated: expected '%s', got '%s'", tc.text, result)
			}
		})
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "reports", "summary.md")

	report := &SummaryReport{
		GeneratedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Books:        2,
		ByStatus:     map[store.Status]int{store.StatusReading: 1, store.StatusFinished: 1},
		ByFormat:     map[format.Format]int{format.EPUB: 2},
		TotalBytes:   3 * 1000 * 1000,
		Goal:         store.Goal{DailyTarget: 20, CurrentStreak: 3, LongestStreak: 7, TotalBooksCompleted: 1, TotalTimeRead: 90 * time.Minute},
		Reading:      []BookLine{{Title: "Dune", Author: "Frank Herbert", Percent: 40}},
		TopErrors:    []ErrorSummary{{Error: "corrupt file", Count: 2}},
		DatabasePath: "shelf.db",
	}

	if err := WriteMarkdownReport(report, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	md := string(content)

	expected := []string{
		"# Shelf - Library Report",
		"**Generated:** 2024-03-01 12:00:00",
		"**Database:** `shelf.db`",
		"| Books | 2 |",
		"| reading | 1 |",
		"| Total Size | 3.0 MB |",
		"| epub | 2 |",
		"| Current Streak | 3 days |",
		"| Longest Streak | 7 days |",
		"| Time Read | 1h30m0s |",
		"| Dune | Frank Herbert | 40% | never |",
		"| 2 | corrupt file |",
	}
	for _, s := range expected {
		if !strings.Contains(md, s) {
			t.Errorf("Report missing %q", s)
		}
	}
	if strings.Contains(md, "## 📥 Activity") {
		t.Error("Activity section should be omitted without events")
	}
}

func TestReportWithEmptyData(t *testing.T) {
	db := openTestStore(t)
	report, err := GenerateSummaryReport(context.Background(), db, "")
	if err != nil {
		t.Fatalf("GenerateSummaryReport failed: %v", err)
	}
	md := RenderMarkdown(report)
	if !strings.Contains(md, "| Books | 0 |") {
		t.Error("Expected zero book count")
	}
	if strings.Contains(md, "Currently Reading") || strings.Contains(md, "Top Errors") {
		t.Error("Empty report should omit detail sections")
	}
}
