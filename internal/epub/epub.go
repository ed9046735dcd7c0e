// Package epub reads reflowable EPUB 2/3 archives: package metadata,
// spine order, section text and the embedded cover.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// Author is a dc:creator entry
type Author struct {
	Name   string
	FileAs string // e.g. "Dickens, Charles"
	Role   string // e.g. "aut", "trl"
}

// Metadata holds the Dublin Core fields used for display
type Metadata struct {
	Titles   []string
	Authors  []Author
	Language string
}

// Section is one spine entry
type Section struct {
	ID        string
	Href      string // archive path
	MediaType string
	Linear    bool
}

// Book is an opened EPUB held entirely in memory
type Book struct {
	zr       *zip.Reader
	opfPath  string
	pkg      *packageDoc
	byID     map[string]manifestItem
	sections []Section
	metadata Metadata
}

// Parse opens an EPUB from its raw bytes. The slice is retained, so
// callers must not modify it afterwards.
func Parse(data []byte) (*Book, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	opfPath, err := packagePath(zr)
	if err != nil {
		return nil, err
	}
	f := lookup(zr, opfPath)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissing, opfPath)
	}
	raw, err := readEntry(f)
	if err != nil {
		return nil, err
	}
	pkg, err := parsePackage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	b := &Book{
		zr:      zr,
		opfPath: f.Name,
		pkg:     pkg,
		byID:    make(map[string]manifestItem, len(pkg.Manifest)),
	}
	for _, item := range pkg.Manifest {
		b.byID[item.ID] = item
	}
	for _, ref := range pkg.Spine {
		item, ok := b.byID[ref.IDRef]
		if !ok {
			continue
		}
		b.sections = append(b.sections, Section{
			ID:        item.ID,
			Href:      resolve(b.opfPath, item.Href),
			MediaType: item.MediaType,
			Linear:    ref.Linear != "no",
		})
	}
	b.metadata = b.buildMetadata()
	return b, nil
}

func (b *Book) buildMetadata() Metadata {
	md := Metadata{Authors: b.pkg.authors()}
	for _, t := range b.pkg.Metadata.Titles {
		if v := strings.TrimSpace(t.Value); v != "" {
			md.Titles = append(md.Titles, v)
		}
	}
	for _, l := range b.pkg.Metadata.Language {
		if v := strings.TrimSpace(l.Value); v != "" {
			md.Language = v
			break
		}
	}
	return md
}

// Metadata returns the package metadata
func (b *Book) Metadata() Metadata {
	return b.metadata
}

// Sections returns the spine in reading order
func (b *Book) Sections() []Section {
	return b.sections
}

// ReadFile returns a raw archive entry
func (b *Book) ReadFile(name string) ([]byte, error) {
	f := lookup(b.zr, name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissing, name)
	}
	return readEntry(f)
}

// SectionText returns the visible text of spine entry i with block
// boundaries kept as newlines.
func (b *Book) SectionText(i int) (string, error) {
	if i < 0 || i >= len(b.sections) {
		return "", fmt.Errorf("epub: section %d out of range", i)
	}
	s := b.sections[i]
	if s.Href == "" {
		return "", nil
	}
	data, err := b.ReadFile(s.Href)
	if err != nil {
		return "", err
	}
	return extractText(data), nil
}
