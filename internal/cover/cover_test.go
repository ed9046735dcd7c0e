package cover

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"

	"github.com/franz/shelf/internal/format"
)

func failingRenderer(context.Context, []byte, int) ([]byte, error) {
	return nil, errors.New("no rasterizer")
}

func panickingRenderer(context.Context, []byte, int) ([]byte, error) {
	panic("engine blew up")
}

func checkPlaceholder(t *testing.T, img Image) {
	t.Helper()
	if img.Source != SourcePlaceholder {
		t.Fatalf("Source = %q, want placeholder", img.Source)
	}
	decoded, err := png.Decode(bytes.NewReader(img.Data))
	if err != nil {
		t.Fatalf("placeholder is not a PNG: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 400 || b.Dy() != 600 {
		t.Errorf("placeholder size = %dx%d, want 400x600", b.Dx(), b.Dy())
	}
}

func TestResolveExternalWins(t *testing.T) {
	r := NewResolver(Config{RenderPage: panickingRenderer})
	img := r.Resolve(context.Background(), Input{
		Format: format.PDF,
		URL:    "data:image/jpeg;base64,AAAA",
		Title:  "Anything",
	})
	if img.Source != SourceExternal || img.URL != "data:image/jpeg;base64,AAAA" {
		t.Fatalf("Resolve = %+v", img)
	}
	if img.MimeType != "image/jpeg" {
		t.Errorf("MimeType = %q", img.MimeType)
	}
	if img.Ref("abc") != img.URL {
		t.Errorf("Ref should return the external reference")
	}
}

func TestResolvePDFRendersFirstPage(t *testing.T) {
	var gotDPI int
	r := NewResolver(Config{DPI: 96, RenderPage: func(_ context.Context, _ []byte, dpi int) ([]byte, error) {
		gotDPI = dpi
		return []byte("png-bytes"), nil
	}})
	img := r.Resolve(context.Background(), Input{Format: format.PDF, Data: []byte("%PDF"), Title: "T"})
	if img.Source != SourcePage || string(img.Data) != "png-bytes" {
		t.Fatalf("Resolve = %+v", img)
	}
	if gotDPI != 96 {
		t.Errorf("dpi = %d, want 96", gotDPI)
	}
	if img.Ref("abc") != "cover://abc" {
		t.Errorf("Ref = %q", img.Ref("abc"))
	}
}

func TestResolveFallsBackToPlaceholder(t *testing.T) {
	tests := []struct {
		name   string
		render PageRenderer
		in     Input
	}{
		{"pdf render error", failingRenderer, Input{Format: format.PDF, Title: "Broken PDF"}},
		{"pdf render panic", panickingRenderer, Input{Format: format.PDF, Title: "Panicky"}},
		{"corrupt epub", failingRenderer, Input{Format: format.EPUB, Data: []byte("nope"), Title: "Bad EPUB"}},
		{"text", failingRenderer, Input{Format: format.Text, Data: []byte("hello"), Title: "Plain"}},
		{"empty title", failingRenderer, Input{Format: format.Text}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(Config{RenderPage: tt.render, Placeholders: NewSeededPainter(1)})
			checkPlaceholder(t, r.Resolve(context.Background(), tt.in))
		})
	}
}

func TestResolveEmbeddedEPUBCover(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"META-INF/container.xml": `<container><rootfiles><rootfile full-path="content.opf"/></rootfiles></container>`,
		"content.opf": `<package xmlns="http://www.idpf.org/2007/opf" version="3.0"><metadata/>
<manifest><item id="c" href="cover.jpg" media-type="image/jpeg" properties="cover-image"/></manifest><spine/></package>`,
		"cover.jpg": "JPEGDATA",
	}
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(Config{RenderPage: failingRenderer})
	img := r.Resolve(context.Background(), Input{Format: format.EPUB, Data: buf.Bytes(), Title: "E"})
	if img.Source != SourceEmbedded || string(img.Data) != "JPEGDATA" || img.MimeType != "image/jpeg" {
		t.Fatalf("Resolve = %+v", img)
	}
}

func TestWrapTitle(t *testing.T) {
	lines := wrapTitle("The Hitchhiker's Guide to the Galaxy", 16, 8)
	for _, l := range lines {
		if len(l) > 16 {
			t.Errorf("line %q longer than 16", l)
		}
	}
	if strings.Join(lines, " ") != "The Hitchhiker's Guide to the Galaxy" {
		t.Errorf("wrapped = %q", lines)
	}

	long := wrapTitle(strings.Repeat("word ", 60), 16, 8)
	if len(long) != 8 || !strings.HasSuffix(long[7], "...") {
		t.Errorf("truncated = %q", long)
	}

	split := wrapTitle("Supercalifragilisticexpialidocious", 16, 8)
	if len(split) != 3 || split[0] != "Supercalifragili" {
		t.Errorf("split = %q", split)
	}
}

func TestPainterColorsDiffer(t *testing.T) {
	p := NewSeededPainter(7)
	for i := 0; i < 50; i++ {
		a, b := p.colors()
		if a == b {
			t.Fatalf("gradient endpoints should differ, got %v twice", a)
		}
	}
}
