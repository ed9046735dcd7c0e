// Package pdfdoc wraps the PDF libraries behind the fixed-layout reader:
// page counting, document info, XMP metadata, page text and page rasters.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrInvalid indicates bytes that neither PDF parser accepts
var ErrInvalid = errors.New("pdfdoc: invalid document")

// Info holds the document information dictionary fields
type Info struct {
	Title    string
	Author   string
	Subject  string
	Creator  string
	Producer string
}

// Document is an opened PDF held in memory
type Document struct {
	data  []byte
	pages int
	r     *pdf.Reader

	mu     sync.Mutex
	raster *rasterizer
}

// Open parses data. pdfcpu validates and counts pages; the lighter parser
// is used for metadata and text and as the page count of last resort.
func Open(data []byte) (d *Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d, err = nil, fmt.Errorf("%w: %v", ErrInvalid, rec)
		}
	}()

	d = &Document{data: data}

	r, rerr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if rerr == nil {
		d.r = r
	}

	count, cerr := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	switch {
	case cerr == nil && count > 0:
		d.pages = count
	case d.r != nil && d.r.NumPage() > 0:
		d.pages = d.r.NumPage()
	default:
		if cerr == nil {
			cerr = rerr
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, cerr)
	}
	return d, nil
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.pages
}

// Info reads the trailer's /Info dictionary. Missing fields are empty.
func (d *Document) Info() (info Info) {
	if d.r == nil {
		return info
	}
	defer func() {
		if recover() != nil {
			info = Info{}
		}
	}()

	dict := d.r.Trailer().Key("Info")
	if dict.IsNull() {
		return info
	}
	return Info{
		Title:    dict.Key("Title").Text(),
		Author:   dict.Key("Author").Text(),
		Subject:  dict.Key("Subject").Text(),
		Creator:  dict.Key("Creator").Text(),
		Producer: dict.Key("Producer").Text(),
	}
}

// XMP reads the catalog's /Metadata stream and returns its Dublin Core
// title and creators.
func (d *Document) XMP() (x XMP) {
	if d.r == nil {
		return x
	}
	defer func() {
		if recover() != nil {
			x = XMP{}
		}
	}()

	stream := d.r.Trailer().Key("Root").Key("Metadata")
	if stream.IsNull() {
		return x
	}
	rc := stream.Reader()
	defer rc.Close()
	raw, err := io.ReadAll(io.LimitReader(rc, 4<<20))
	if err != nil {
		return x
	}
	return parseXMP(raw)
}

// PageText extracts the plain text of 1-based page n
func (d *Document) PageText(n int) (text string, err error) {
	if d.r == nil {
		return "", fmt.Errorf("%w: no text layer", ErrInvalid)
	}
	if n < 1 || n > d.r.NumPage() {
		return "", fmt.Errorf("pdfdoc: page %d out of range", n)
	}
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("pdfdoc: page %d: %v", n, rec)
		}
	}()

	page := d.r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("pdfdoc: page %d text: %w", n, err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// Close releases the rasterizer's temporary file, if one was created
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.raster == nil {
		return nil
	}
	err := d.raster.close()
	d.raster = nil
	return err
}
