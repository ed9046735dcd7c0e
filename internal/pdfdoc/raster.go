package pdfdoc

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/image"
)

// pageExtractor is the part of an opened document-context PDF we use
type pageExtractor interface {
	ExtractPage(pageNum int) (document.Page, error)
	io.Closer
}

// rasterizer renders pages through ImageMagick. document-context reads
// from a path, so the bytes are spilled to a temporary file once.
type rasterizer struct {
	path string
	doc  pageExtractor
}

func newRasterizer(data []byte) (*rasterizer, error) {
	f, err := os.CreateTemp("", "shelf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("pdfdoc: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("pdfdoc: close temp file: %w", err)
	}

	doc, err := document.OpenPDF(f.Name())
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("pdfdoc: open for rendering: %w", err)
	}
	return &rasterizer{path: f.Name(), doc: doc}, nil
}

func (r *rasterizer) render(page, dpi int) ([]byte, error) {
	renderer, err := image.NewImageMagickRenderer(config.ImageConfig{
		Format:  string(document.PNG),
		DPI:     dpi,
		Options: make(map[string]any),
	})
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: renderer: %w", err)
	}
	p, err := r.doc.ExtractPage(page)
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: extract page %d: %w", page, err)
	}
	data, err := p.ToImage(renderer, nil)
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: render page %d: %w", page, err)
	}
	return data, nil
}

func (r *rasterizer) close() error {
	err := r.doc.Close()
	if rmErr := os.Remove(r.path); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// RenderPage rasterizes 1-based page n as PNG at dpi
func (d *Document) RenderPage(ctx context.Context, n, dpi int) ([]byte, error) {
	if n < 1 || n > d.pages {
		return nil, fmt.Errorf("pdfdoc: page %d out of range", n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.raster == nil {
		r, err := newRasterizer(d.data)
		if err != nil {
			return nil, err
		}
		d.raster = r
	}
	return d.raster.render(n, dpi)
}
