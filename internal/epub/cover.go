package epub

import (
	"bytes"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CoverImage is an image entry found in the archive
type CoverImage struct {
	Path      string
	MediaType string
	Data      []byte
}

// Cover finds the embedded cover. Strategies in order: the EPUB 3
// cover-image property, EPUB 2 <meta name="cover">, the guide's cover
// reference, a manifest image whose id or href mentions "cover", and the
// first image of the first spine document.
func (b *Book) Cover() (CoverImage, error) {
	strategies := []func() (manifestItem, bool){
		b.coverFromProperties,
		b.coverFromMeta,
		b.coverFromGuide,
		b.coverFromHeuristic,
		b.coverFromFirstSection,
	}
	for _, find := range strategies {
		item, ok := find()
		if !ok {
			continue
		}
		p := resolve(b.opfPath, item.Href)
		data, err := b.ReadFile(p)
		if err != nil || len(data) == 0 {
			continue
		}
		return CoverImage{Path: p, MediaType: item.MediaType, Data: data}, nil
	}
	return CoverImage{}, ErrNoCover
}

func (b *Book) coverFromProperties() (manifestItem, bool) {
	for _, item := range b.pkg.Manifest {
		if slices.Contains(strings.Fields(item.Properties), "cover-image") {
			return item, true
		}
	}
	return manifestItem{}, false
}

func (b *Book) coverFromMeta() (manifestItem, bool) {
	for _, m := range b.pkg.Metadata.Metas {
		if !strings.EqualFold(m.Name, "cover") || m.Content == "" {
			continue
		}
		item, ok := b.byID[m.Content]
		if !ok {
			continue
		}
		if isImage(item.MediaType) {
			return item, true
		}
		return b.firstImageIn(resolve(b.opfPath, item.Href))
	}
	return manifestItem{}, false
}

func (b *Book) coverFromGuide() (manifestItem, bool) {
	for _, ref := range b.pkg.Guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}
		return b.firstImageIn(resolve(b.opfPath, ref.Href))
	}
	return manifestItem{}, false
}

func (b *Book) coverFromHeuristic() (manifestItem, bool) {
	for _, item := range b.pkg.Manifest {
		if !isImage(item.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(item.ID), "cover") || strings.Contains(strings.ToLower(item.Href), "cover") {
			return item, true
		}
	}
	return manifestItem{}, false
}

func (b *Book) coverFromFirstSection() (manifestItem, bool) {
	if len(b.sections) == 0 {
		return manifestItem{}, false
	}
	return b.firstImageIn(b.sections[0].Href)
}

// firstImageIn parses an XHTML entry and maps its first <img> or SVG
// <image> back to a manifest item.
func (b *Book) firstImageIn(docPath string) (manifestItem, bool) {
	if docPath == "" {
		return manifestItem{}, false
	}
	data, err := b.ReadFile(docPath)
	if err != nil {
		return manifestItem{}, false
	}
	src := firstImageSrc(data)
	if src == "" {
		return manifestItem{}, false
	}
	target := resolve(docPath, src)
	for _, item := range b.pkg.Manifest {
		if isImage(item.MediaType) && strings.EqualFold(resolve(b.opfPath, item.Href), target) {
			return item, true
		}
	}
	return manifestItem{}, false
}

func firstImageSrc(data []byte) string {
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return ""
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		a := atom.Lookup(name)
		if !hasAttr || (a != atom.Img && a != atom.Image) {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			k := string(key)
			if (a == atom.Img && k == "src") || (a == atom.Image && (k == "href" || k == "xlink:href")) {
				if v := strings.TrimSpace(string(val)); v != "" {
					return v
				}
			}
			if !more {
				break
			}
		}
	}
}

func isImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}
