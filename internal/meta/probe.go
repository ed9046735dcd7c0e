package meta

import (
	"fmt"
	"strings"

	"github.com/franz/shelf/internal/epub"
	"github.com/franz/shelf/internal/format"
	"github.com/franz/shelf/internal/pdfdoc"
	"github.com/franz/shelf/internal/textdoc"
	"github.com/franz/shelf/internal/util"
)

// Metadata is the normalized title/author pair shown for a book
type Metadata struct {
	Title  string
	Author string
}

// Candidates are raw embedded values in precedence order
type Candidates struct {
	Titles  []string
	Authors []string
}

// Empty reports whether no candidate was found
func (c Candidates) Empty() bool {
	return len(c.Titles) == 0 && len(c.Authors) == 0
}

// Resolve picks the first title and author candidates that survive
// cleaning. The title falls back to the filename placeholder and the
// author to UnknownAuthor.
func Resolve(filename string, c Candidates) Metadata {
	placeholder := TitleFromFilename(filename)
	md := Metadata{Title: placeholder, Author: UnknownAuthor}

	for _, t := range c.Titles {
		if cleaned, ok := clean(t); ok {
			md.Title = cleaned
			break
		}
	}
	for _, a := range c.Authors {
		if name := NormalizeAuthor(a); name != "" {
			md.Author = name
			break
		}
	}
	return md
}

// FromPDF lists info dictionary values before XMP values
func FromPDF(doc *pdfdoc.Document) Candidates {
	var c Candidates
	info := doc.Info()
	x := doc.XMP()
	c.Titles = appendNonEmpty(c.Titles, info.Title, x.Title)
	c.Authors = appendNonEmpty(c.Authors, info.Author)
	c.Authors = appendNonEmpty(c.Authors, x.Creators...)
	return c
}

// FromEPUB lists dc:title entries and the joined dc:creator names.
// Creators with a non-author role are skipped when an author exists.
func FromEPUB(b *epub.Book) Candidates {
	md := b.Metadata()
	c := Candidates{Titles: appendNonEmpty(nil, md.Titles...)}

	var authors, others []string
	for _, a := range md.Authors {
		if a.Role == "" || a.Role == "aut" {
			authors = append(authors, a.Name)
		} else {
			others = append(others, a.Name)
		}
	}
	if len(authors) == 0 {
		authors = others
	}
	if len(authors) > 0 {
		c.Authors = []string{joinAuthors(authors)}
	}
	return c
}

// FromText reads a Gutenberg style header block
func FromText(doc *textdoc.Document) Candidates {
	h := doc.Header()
	return Candidates{
		Titles:  appendNonEmpty(nil, h.Title),
		Authors: appendNonEmpty(nil, h.Author),
	}
}

// Probe extracts and normalizes metadata at ingestion. Failures are
// logged and give the filename fallback, never an error.
func Probe(f format.Format, data []byte, filename string) Metadata {
	c, err := probeCandidates(f, data)
	if err != nil {
		util.DebugLog("Metadata probe failed for %s: %v", filename, err)
	}
	return Resolve(filename, c)
}

func probeCandidates(f format.Format, data []byte) (c Candidates, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c, err = Candidates{}, fmt.Errorf("probe panic: %v", rec)
		}
	}()

	switch f {
	case format.PDF:
		doc, err := pdfdoc.Open(data)
		if err != nil {
			return c, err
		}
		defer doc.Close()
		return FromPDF(doc), nil
	case format.EPUB:
		b, err := epub.Parse(data)
		if err != nil {
			return c, err
		}
		return FromEPUB(b), nil
	case format.Text:
		doc, err := textdoc.Decode(data)
		if err != nil {
			return c, err
		}
		return FromText(doc), nil
	}
	return c, fmt.Errorf("no metadata probe for %s", f)
}

// joinAuthors keeps each creator intact by joining with ";", which
// NormalizeAuthor splits on before swapping "Last, First".
func joinAuthors(names []string) string {
	return strings.Join(names, "; ")
}

func appendNonEmpty(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" {
			dst = append(dst, v)
		}
	}
	return dst
}
