// Package textdoc decodes plain-text books and lays them out into lines.
package textdoc

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// headerScanLines bounds the search for a "Title:"/"Author:" block
const headerScanLines = 80

// Document is a decoded text file split into source lines
type Document struct {
	lines    []string
	encoding string
}

// Header is the bibliographic block some text files open with
type Header struct {
	Title  string
	Author string
}

// Decode sniffs the encoding (BOM, then UTF-8 validity, then a legacy
// single-byte fallback) and normalizes line endings.
func Decode(data []byte) (*Document, error) {
	enc, name, _ := charset.DetermineEncoding(data, "text/plain")
	text := string(data)
	if name != "utf-8" || !utf8.Valid(data) {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err == nil {
			text = string(decoded)
		}
	}
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ToValidUTF8(text, "\uFFFD")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(strings.ReplaceAll(l, "\t", "    "), " ")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return &Document{lines: lines, encoding: name}, nil
}

// Encoding returns the detected charset name
func (d *Document) Encoding() string {
	return d.encoding
}

// Text returns the normalized content
func (d *Document) Text() string {
	return strings.Join(d.lines, "\n")
}

// Header scans the opening lines for "Title:" and "Author:" fields as
// written by Project Gutenberg. Continuation lines are not followed.
func (d *Document) Header() Header {
	var h Header
	for i, line := range d.lines {
		if i >= headerScanLines {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "title":
			if h.Title == "" {
				h.Title = value
			}
		case "author":
			if h.Author == "" {
				h.Author = value
			}
		}
	}
	return h
}

// Wrap lays the text out at the given width in runes. Words longer than
// a line are split; blank lines are kept.
func (d *Document) Wrap(columns int) []string {
	if columns < 1 {
		columns = 1
	}
	var out []string
	for _, line := range d.lines {
		if line == "" {
			out = append(out, "")
			continue
		}
		out = append(out, wrapLine(line, columns)...)
	}
	return out
}

func wrapLine(line string, columns int) []string {
	var (
		out []string
		cur []rune
	)
	for _, word := range strings.Fields(line) {
		w := []rune(word)
		for len(w) > columns {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			out = append(out, string(w[:columns]))
			w = w[columns:]
		}
		switch {
		case len(cur) == 0:
			cur = append(cur, w...)
		case len(cur)+1+len(w) <= columns:
			cur = append(cur, ' ')
			cur = append(cur, w...)
		default:
			out = append(out, string(cur))
			cur = append([]rune(nil), w...)
		}
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
