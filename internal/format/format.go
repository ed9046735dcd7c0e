// Package format maps book filenames to format tags.
package format

import (
	"path/filepath"
	"strings"
)

// Format is the persisted format tag of a book
type Format string

const (
	Unsupported Format = ""
	EPUB        Format = "epub"
	PDF         Format = "pdf"
	Text        Format = "txt"
	Comic       Format = "comic"
)

// Layout is the navigation model a format renders with
type Layout int

const (
	LayoutNone Layout = iota
	LayoutReflowable
	LayoutFixed
	LayoutPlain
)

func (l Layout) String() string {
	switch l {
	case LayoutReflowable:
		return "reflowable"
	case LayoutFixed:
		return "fixed"
	case LayoutPlain:
		return "plain"
	}
	return "none"
}

// extensions maps lowercase file extensions to formats
var extensions = map[string]Format{
	".epub": EPUB,
	".pdf":  PDF,
	".txt":  Text,
	".text": Text,
	".cbz":  Comic,
	".cbr":  Comic,
	".cb7":  Comic,
}

// Detect classifies a file by extension alone, case-insensitively.
func Detect(filename string) Format {
	return extensions[strings.ToLower(filepath.Ext(filename))]
}

// Parse converts a persisted tag back into a Format
func Parse(tag string) Format {
	switch f := Format(strings.ToLower(strings.TrimSpace(tag))); f {
	case EPUB, PDF, Text, Comic:
		return f
	}
	return Unsupported
}

// Supported returns every extension the scanner should pick up
func Supported() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	return exts
}

// Renderable reports whether a reader exists for the format
func (f Format) Renderable() bool {
	return f.Layout() != LayoutNone
}

// Layout returns the navigation model for the format
func (f Format) Layout() Layout {
	switch f {
	case EPUB:
		return LayoutReflowable
	case PDF:
		return LayoutFixed
	case Text:
		return LayoutPlain
	}
	return LayoutNone
}

// MimeType returns the content type stored alongside the file bytes
func (f Format) MimeType() string {
	switch f {
	case EPUB:
		return "application/epub+zip"
	case PDF:
		return "application/pdf"
	case Text:
		return "text/plain; charset=utf-8"
	case Comic:
		return "application/vnd.comicbook+zip"
	}
	return "application/octet-stream"
}

func (f Format) String() string {
	if f == Unsupported {
		return "unsupported"
	}
	return string(f)
}
