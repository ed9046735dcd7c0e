package textdoc

import (
	"reflect"
	"testing"
)

func TestDecodeUTF8WithBOM(t *testing.T) {
	doc, err := Decode([]byte("\xEF\xBB\xBFHello\r\nWorld\r\n\r\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Text() != "Hello\nWorld" {
		t.Errorf("Text = %q", doc.Text())
	}
}

func TestDecodeLatin1Fallback(t *testing.T) {
	// "café" in windows-1252
	doc, err := Decode([]byte("caf\xe9"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Text() != "café" {
		t.Errorf("Text = %q, want café", doc.Text())
	}
	if doc.Encoding() == "utf-8" {
		t.Error("invalid UTF-8 should not be reported as utf-8")
	}
}

func TestDecodeUTF16(t *testing.T) {
	// UTF-16LE BOM + "Hi"
	doc, err := Decode([]byte{0xFF, 0xFE, 'H', 0, 'i', 0})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Text() != "Hi" {
		t.Errorf("Text = %q, want Hi", doc.Text())
	}
}

func TestHeader(t *testing.T) {
	src := "The Project Gutenberg eBook of Middlemarch\n\n" +
		"Title: Middlemarch\n\nAuthor: George Eliot\n\nRelease date: July 1, 1994\n\n" +
		"Chapter I\nTitle: not this one"
	doc, _ := Decode([]byte(src))
	h := doc.Header()
	if h.Title != "Middlemarch" || h.Author != "George Eliot" {
		t.Errorf("Header = %+v", h)
	}

	plain, _ := Decode([]byte("Just some text without a header."))
	if got := plain.Header(); got != (Header{}) {
		t.Errorf("expected empty header, got %+v", got)
	}
}

func TestWrap(t *testing.T) {
	doc, _ := Decode([]byte("the quick brown fox jumps\n\nabcdefghijkl"))
	got := doc.Wrap(10)
	want := []string{"the quick", "brown fox", "jumps", "", "abcdefghij", "kl"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Wrap(10) = %q, want %q", got, want)
	}
}

func TestWrapZeroColumns(t *testing.T) {
	doc, _ := Decode([]byte("ab"))
	if got := doc.Wrap(0); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Wrap(0) = %q", got)
	}
}
