package util

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestContentIDDeterministic(t *testing.T) {
	a := ContentID([]byte("hello"))
	b := ContentID([]byte("hello"))
	if a != b {
		t.Fatalf("ContentID not deterministic: %s vs %s", a, b)
	}
	if a != "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d" {
		t.Errorf("unexpected sha1: %s", a)
	}
	if ContentID([]byte("hello!")) == a {
		t.Error("different content produced the same id")
	}
}

func TestHashFileMatchesContentID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.txt")
	data := []byte("It was a dark and stormy night.")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if got != ContentID(data) {
		t.Errorf("HashFile = %s, ContentID = %s", got, ContentID(data))
	}
}

func TestNotRenderableWrapsUnsupported(t *testing.T) {
	if !errors.Is(ErrNotRenderable, ErrUnsupported) {
		t.Error("ErrNotRenderable should wrap ErrUnsupported")
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	prev := SetLogOutput(&buf)
	defer SetLogOutput(prev)
	SetColors(false)
	defer SetColors(true)
	SetLogLevel(LevelWarn)
	defer SetLogLevel(LevelInfo)

	InfoLog("hidden %d", 1)
	WarnLog("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line leaked at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN]  shown 2") {
		t.Errorf("warn line missing: %q", out)
	}
	if IsVerbose() || IsQuiet() {
		t.Error("warn level is neither verbose nor quiet")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"Middlemarch", 6, "Middl…"},
		{"Ünïcödé", 4, "Ünï…"},
		{"x", 0, "x"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
