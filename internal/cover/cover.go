// Package cover picks the image shown for a book in the library: an
// external reference, a rendered first page, an embedded EPUB cover or a
// generated placeholder.
package cover

import (
	"context"
	"fmt"
	"strings"

	"github.com/franz/shelf/internal/epub"
	"github.com/franz/shelf/internal/format"
	"github.com/franz/shelf/internal/pdfdoc"
	"github.com/franz/shelf/internal/util"
)

// Source records which strategy produced an Image
type Source string

const (
	SourceExternal    Source = "external"
	SourcePage        Source = "page"
	SourceEmbedded    Source = "embedded"
	SourcePlaceholder Source = "placeholder"
)

// DefaultDPI is the first-page render resolution
const DefaultDPI = 72

// Image is a displayable cover. External images carry only URL.
type Image struct {
	URL      string
	Data     []byte
	MimeType string
	Source   Source
}

// Ref is the value stored on the book record: the external reference
// itself, or a cover:// link to the stored image.
func (i Image) Ref(bookID string) string {
	if i.Source == SourceExternal {
		return i.URL
	}
	return StoredRef(bookID)
}

// StoredRef is the reference to a cover kept in the store
func StoredRef(bookID string) string {
	return "cover://" + bookID
}

// Input describes the book being resolved
type Input struct {
	Format format.Format
	Data   []byte
	Title  string
	URL    string
}

// PageRenderer rasterizes the first page of a fixed-layout document
type PageRenderer func(ctx context.Context, data []byte, dpi int) ([]byte, error)

// Config controls the resolver
type Config struct {
	DPI          int
	RenderPage   PageRenderer // defaults to the pdfdoc rasterizer
	Placeholders *Painter     // defaults to NewPainter()
}

// Resolver applies the cover policy. It is safe for concurrent use.
type Resolver struct {
	dpi     int
	render  PageRenderer
	painter *Painter
}

// NewResolver creates a resolver with defaults filled in
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{dpi: cfg.DPI, render: cfg.RenderPage, painter: cfg.Placeholders}
	if r.dpi <= 0 {
		r.dpi = DefaultDPI
	}
	if r.render == nil {
		r.render = renderFirstPage
	}
	if r.painter == nil {
		r.painter = NewPainter()
	}
	return r
}

// Resolve returns the first cover that can be produced. It never fails;
// extraction errors and panics end in the placeholder.
func (r *Resolver) Resolve(ctx context.Context, in Input) Image {
	if ref := strings.TrimSpace(in.URL); ref != "" {
		return Image{URL: ref, MimeType: mimeFromRef(ref), Source: SourceExternal}
	}

	img, err := r.extract(ctx, in)
	if err == nil {
		return img
	}
	util.DebugLog("Cover extraction for %q fell back to placeholder: %v", in.Title, err)

	data, err := r.painter.Paint(in.Title)
	if err != nil {
		// Paint only fails if PNG encoding fails on an in-memory buffer
		util.WarnLog("Placeholder cover for %q: %v", in.Title, err)
	}
	return Image{Data: data, MimeType: "image/png", Source: SourcePlaceholder}
}

func (r *Resolver) extract(ctx context.Context, in Input) (img Image, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img, err = Image{}, fmt.Errorf("cover panic: %v", rec)
		}
	}()

	switch in.Format {
	case format.PDF:
		data, err := r.render(ctx, in.Data, r.dpi)
		if err != nil {
			return Image{}, err
		}
		if len(data) == 0 {
			return Image{}, fmt.Errorf("empty page render")
		}
		return Image{Data: data, MimeType: "image/png", Source: SourcePage}, nil
	case format.EPUB:
		b, err := epub.Parse(in.Data)
		if err != nil {
			return Image{}, err
		}
		c, err := b.Cover()
		if err != nil {
			return Image{}, err
		}
		return Image{Data: c.Data, MimeType: c.MediaType, Source: SourceEmbedded}, nil
	}
	return Image{}, fmt.Errorf("no embedded cover for %s", in.Format)
}

func renderFirstPage(ctx context.Context, data []byte, dpi int) ([]byte, error) {
	doc, err := pdfdoc.Open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.RenderPage(ctx, 1, dpi)
}

// mimeFromRef reads the media type of a data: URI. Plain URLs give "".
func mimeFromRef(ref string) string {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return ""
	}
	mt, _, _ := strings.Cut(rest, ",")
	mt, _, _ = strings.Cut(mt, ";")
	return mt
}
