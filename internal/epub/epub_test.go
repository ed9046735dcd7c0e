package epub

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

func testOPF(metadata, manifest, spine, guide string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">` + metadata + `</metadata>
  <manifest>` + manifest + `</manifest>
  <spine>` + spine + `</spine>
  <guide>` + guide + `</guide>
</package>`
}

// buildEPUB zips files in memory, writing the mimetype entry first
func buildEPUB(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("mimetype")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("application/epub+zip"))
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sampleBook(t *testing.T) []byte {
	return buildEPUB(t, map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf": testOPF(
			`<dc:title>=?utf-8?B?TXkgQm9vaw==?=</dc:title>
			 <dc:creator id="c1">Doe, Jane</dc:creator>
			 <meta refines="#c1" property="role">aut</meta>
			 <dc:language>en</dc:language>`,
			`<item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
			 <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
			 <item id="img" href="images/cover.jpg" media-type="image/jpeg" properties="cover-image"/>`,
			`<itemref idref="ch1"/><itemref idref="ch2" linear="no"/>`,
			``,
		),
		"OEBPS/text/ch1.xhtml": `<html><head><title>Ignored</title><style>p{}</style></head>
<body><h1>Chapter One</h1><p>It was a   bright cold day.</p><p>The clocks were striking&nbsp;thirteen.</p></body></html>`,
		"OEBPS/text/ch2.xhtml":   `<html><body><p>Second</p><script>var x = 1;</script></body></html>`,
		"OEBPS/images/cover.jpg": "JPEGDATA",
	})
}

func TestParseMetadata(t *testing.T) {
	b, err := Parse(sampleBook(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	md := b.Metadata()
	if len(md.Titles) != 1 || md.Titles[0] != "=?utf-8?B?TXkgQm9vaw==?=" {
		t.Errorf("Titles = %v", md.Titles)
	}
	if len(md.Authors) != 1 || md.Authors[0].Name != "Doe, Jane" || md.Authors[0].Role != "aut" {
		t.Errorf("Authors = %+v", md.Authors)
	}
	if md.Language != "en" {
		t.Errorf("Language = %q", md.Language)
	}
}

func TestSectionsFollowSpine(t *testing.T) {
	b, err := Parse(sampleBook(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	secs := b.Sections()
	if len(secs) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(secs))
	}
	if secs[0].Href != "OEBPS/text/ch1.xhtml" || !secs[0].Linear {
		t.Errorf("section 0 = %+v", secs[0])
	}
	if secs[1].Linear {
		t.Error("section 1 should be non-linear")
	}
}

func TestSectionText(t *testing.T) {
	b, err := Parse(sampleBook(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	text, err := b.SectionText(0)
	if err != nil {
		t.Fatalf("SectionText: %v", err)
	}
	want := "Chapter One\nIt was a bright cold day.\nThe clocks were striking thirteen."
	if text != want {
		t.Errorf("SectionText(0) = %q, want %q", text, want)
	}
	if strings.Contains(text, "Ignored") {
		t.Error("head title leaked into body text")
	}

	text, err = b.SectionText(1)
	if err != nil {
		t.Fatalf("SectionText(1): %v", err)
	}
	if text != "Second" {
		t.Errorf("SectionText(1) = %q, script should be skipped", text)
	}

	if _, err := b.SectionText(5); err == nil {
		t.Error("expected out of range error")
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("not a zip")); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	empty := buildEPUB(t, map[string]string{"readme.txt": "hi"})
	if _, err := Parse(empty); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for archive without package, got %v", err)
	}
}

func TestParseWithoutContainer(t *testing.T) {
	data := buildEPUB(t, map[string]string{
		"book.opf": testOPF(`<dc:title>Fallback</dc:title>`,
			`<item id="a" href="a.html" media-type="application/xhtml+xml"/>`,
			`<itemref idref="a"/>`, ``),
		"a.html": `<p>hello</p>`,
	})
	b, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if b.Metadata().Titles[0] != "Fallback" {
		t.Errorf("title = %v", b.Metadata().Titles)
	}
	if b.Sections()[0].Href != "a.html" {
		t.Errorf("href = %q", b.Sections()[0].Href)
	}
}

func TestCoverStrategies(t *testing.T) {
	xhtml := "application/xhtml+xml"
	tests := []struct {
		name     string
		metadata string
		manifest string
		spine    string
		guide    string
		extra    map[string]string
		wantPath string
	}{
		{
			name:     "cover-image property",
			manifest: `<item id="i" href="img/front.png" media-type="image/png" properties="cover-image"/>`,
			extra:    map[string]string{"OEBPS/img/front.png": "PNG"},
			wantPath: "OEBPS/img/front.png",
		},
		{
			name:     "meta cover",
			metadata: `<meta name="cover" content="pic"/>`,
			manifest: `<item id="pic" href="pic.jpg" media-type="image/jpeg"/>`,
			extra:    map[string]string{"OEBPS/pic.jpg": "JPG"},
			wantPath: "OEBPS/pic.jpg",
		},
		{
			name: "guide reference",
			manifest: `<item id="cp" href="cover.xhtml" media-type="` + xhtml + `"/>
				<item id="art" href="art/a.gif" media-type="image/gif"/>`,
			guide: `<reference type="cover" href="cover.xhtml"/>`,
			extra: map[string]string{
				"OEBPS/cover.xhtml": `<html><body><img src="art/a.gif"/></body></html>`,
				"OEBPS/art/a.gif":   "GIF",
			},
			wantPath: "OEBPS/art/a.gif",
		},
		{
			name:     "manifest heuristic",
			manifest: `<item id="x1" href="Images/Cover-front.jpg" media-type="image/jpeg"/>`,
			extra:    map[string]string{"OEBPS/Images/Cover-front.jpg": "JPG"},
			wantPath: "OEBPS/Images/Cover-front.jpg",
		},
		{
			name: "first spine image",
			manifest: `<item id="s1" href="t/one.xhtml" media-type="` + xhtml + `"/>
				<item id="p1" href="i/plate.png" media-type="image/png"/>`,
			spine: `<itemref idref="s1"/>`,
			extra: map[string]string{
				"OEBPS/t/one.xhtml": `<html><body><p>x</p><img src="../i/plate.png"/></body></html>`,
				"OEBPS/i/plate.png": "PNG",
			},
			wantPath: "OEBPS/i/plate.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{
				"META-INF/container.xml": testContainer,
				"OEBPS/content.opf":      testOPF(tt.metadata, tt.manifest, tt.spine, tt.guide),
			}
			for k, v := range tt.extra {
				files[k] = v
			}
			b, err := Parse(buildEPUB(t, files))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			img, err := b.Cover()
			if err != nil {
				t.Fatalf("Cover: %v", err)
			}
			if img.Path != tt.wantPath {
				t.Errorf("Cover path = %q, want %q", img.Path, tt.wantPath)
			}
			if len(img.Data) == 0 {
				t.Error("cover data empty")
			}
		})
	}
}

func TestCoverMissing(t *testing.T) {
	data := buildEPUB(t, map[string]string{
		"META-INF/container.xml": testContainer,
		"OEBPS/content.opf": testOPF(`<dc:title>T</dc:title>`,
			`<item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>`,
			`<itemref idref="a"/>`, ``),
		"OEBPS/a.xhtml": `<p>no pictures</p>`,
	})
	b, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := b.Cover(); !errors.Is(err, ErrNoCover) {
		t.Errorf("expected ErrNoCover, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"OEBPS/content.opf", "text/ch1.xhtml", "OEBPS/text/ch1.xhtml"},
		{"OEBPS/text/ch1.xhtml", "../img/a.png", "OEBPS/img/a.png"},
		{"content.opf", "a%20b.html#frag", "a b.html"},
		{"OEBPS/content.opf", "../../etc/passwd", ""},
		{"OEBPS/content.opf", "/abs.html", ""},
	}
	for _, tt := range tests {
		if got := resolve(tt.base, tt.href); got != tt.want {
			t.Errorf("resolve(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.want)
		}
	}
}
