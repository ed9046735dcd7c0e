package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/shelf/internal/format"
	"github.com/franz/shelf/internal/report"
)

func touch(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
}

func TestIsBookFile(t *testing.T) {
	scanner := New(&Config{AdditionalExts: []string{"md"}})

	tests := []struct {
		path     string
		expected bool
	}{
		{"book.epub", true},
		{"book.EPUB", true}, // Case insensitive
		{"paper.pdf", true},
		{"notes.txt", true},
		{"comic.cbz", true},
		{"readme.md", true},
		{"image.jpg", false},
		{"book", false},
		{".pdf", true},
	}

	for _, tt := range tests {
		if result := scanner.isBookFile(tt.path); result != tt.expected {
			t.Errorf("isBookFile(%s) = %v, expected %v", tt.path, result, tt.expected)
		}
	}
}

func TestScannerWithRealFiles(t *testing.T) {
	tmpDir := t.TempDir()

	touch(t, filepath.Join(tmpDir, "Herbert", "Dune.epub"), "epub")
	touch(t, filepath.Join(tmpDir, "Herbert", "notes.txt"), "some notes")
	touch(t, filepath.Join(tmpDir, "papers", "paper.PDF"), "%PDF")
	touch(t, filepath.Join(tmpDir, "cover.jpg"), "jpg")               // ignored
	touch(t, filepath.Join(tmpDir, ".trash", "old.epub"), "epub")     // hidden dir
	touch(t, filepath.Join(tmpDir, "Herbert", ".hidden.pdf"), "%PDF") // hidden file

	scanner := New(&Config{})
	result, err := scanner.Scan(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Files) != 3 {
		t.Fatalf("Expected 3 books, got %d: %+v", len(result.Files), result.Files)
	}
	if len(result.Skipped) != 0 {
		t.Errorf("Files inside directories should not be reported as skipped: %v", result.Skipped)
	}

	formats := map[format.Format]int{}
	for _, f := range result.Files {
		formats[f.Format]++
		if !filepath.IsAbs(f.Path) {
			t.Errorf("Expected absolute path, got %s", f.Path)
		}
	}
	if formats[format.EPUB] != 1 || formats[format.PDF] != 1 || formats[format.Text] != 1 {
		t.Errorf("Unexpected formats: %v", formats)
	}

	for i := 1; i < len(result.Files); i++ {
		if result.Files[i-1].Path > result.Files[i].Path {
			t.Error("Expected results sorted by path")
		}
	}
}

func TestScannerIncludeHidden(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, filepath.Join(tmpDir, ".trash", "old.epub"), "epub")

	result, err := New(&Config{IncludeHidden: true}).Scan(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Files) != 1 {
		t.Errorf("Expected hidden book with IncludeHidden, got %d", len(result.Files))
	}
}

func TestScannerExplicitFiles(t *testing.T) {
	tmpDir := t.TempDir()
	book := filepath.Join(tmpDir, "book.txt")
	doc := filepath.Join(tmpDir, "report.docx")
	touch(t, book, "hello")
	touch(t, doc, "docx")

	logger, err := report.NewEventLogger(t.TempDir(), report.LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}

	result, err := New(&Config{Logger: logger}).Scan(context.Background(),
		[]string{book, doc, book, filepath.Join(tmpDir, "missing.pdf")})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Files) != 1 || result.Files[0].Size != 5 {
		t.Errorf("Expected the book once with size 5, got %+v", result.Files)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != doc {
		t.Errorf("Expected docx skipped, got %v", result.Skipped)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected one access error for the missing file, got %v", result.Errors)
	}

	logger.Close()
	events, err := report.ReadEvents(logger.Path())
	if err != nil {
		t.Fatalf("ReadEvents failed: %v", err)
	}
	var skips, errs int
	for _, e := range events {
		switch {
		case e.Level == report.LevelError:
			errs++
		case e.Event == report.EventSkip:
			skips++
		}
	}
	if skips != 1 || errs != 1 {
		t.Errorf("Expected 1 skip and 1 error event, got %d and %d", skips, errs)
	}
}

func TestScannerCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	touch(t, filepath.Join(tmpDir, "a.epub"), "epub")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&Config{}).Scan(ctx, []string{tmpDir})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestGetSupportedExtensions(t *testing.T) {
	exts := New(&Config{}).GetSupportedExtensions()
	if len(exts) != len(format.Supported()) {
		t.Errorf("Expected %d extensions, got %d", len(format.Supported()), len(exts))
	}
	for i := 1; i < len(exts); i++ {
		if exts[i-1] > exts[i] {
			t.Errorf("Extensions not sorted: %v", exts)
		}
	}
}
