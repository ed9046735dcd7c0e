package reader

import (
	"context"
	"fmt"

	"github.com/franz/shelf/internal/epub"
	"github.com/franz/shelf/internal/meta"
	"github.com/franz/shelf/internal/pdfdoc"
	"github.com/franz/shelf/internal/util"
)

// PageDocument is a fixed-layout engine
type PageDocument interface {
	PageCount() int
	RenderPage(ctx context.Context, n, dpi int) ([]byte, error)
	PageText(n int) (string, error)
	Metadata() meta.Candidates
	Close() error
}

// PageOpener parses raw bytes into a PageDocument
type PageOpener func(data []byte) (PageDocument, error)

// FlowDocument is a reflowable engine: an ordered list of text sections
type FlowDocument interface {
	SectionCount() int
	SectionText(i int) (string, error)
	Metadata() meta.Candidates
}

// FlowOpener parses raw bytes into a FlowDocument
type FlowOpener func(data []byte) (FlowDocument, error)

type pdfSource struct {
	*pdfdoc.Document
}

func (p pdfSource) Metadata() meta.Candidates {
	return meta.FromPDF(p.Document)
}

// OpenPDF is the default PageOpener
func OpenPDF(data []byte) (PageDocument, error) {
	doc, err := pdfdoc.Open(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrCorrupt, err)
	}
	return pdfSource{doc}, nil
}

type epubSource struct {
	*epub.Book
}

func (e epubSource) SectionCount() int {
	return len(e.Sections())
}

func (e epubSource) Metadata() meta.Candidates {
	return meta.FromEPUB(e.Book)
}

// OpenEPUB is the default FlowOpener
func OpenEPUB(data []byte) (FlowDocument, error) {
	b, err := epub.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrCorrupt, err)
	}
	return epubSource{b}, nil
}
