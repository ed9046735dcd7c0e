package pdfdoc

import (
	"bytes"
	"encoding/xml"
	"strings"
)

const dcNamespace = "http://purl.org/dc/elements/1.1/"

// XMP holds the Dublin Core fields of an XMP packet
type XMP struct {
	Title    string
	Creators []string
}

// parseXMP walks the RDF tree: dc:title holds an rdf:Alt, dc:creator an
// rdf:Seq. The first title alternative wins. Malformed packets yield
// whatever was read before the error.
func parseXMP(raw []byte) XMP {
	var (
		x       XMP
		field   string
		inItem  bool
		text    strings.Builder
		depth   int
		fieldAt int
	)

	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return x
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if field == "" && t.Name.Space == dcNamespace && (t.Name.Local == "title" || t.Name.Local == "creator") {
				field = t.Name.Local
				fieldAt = depth
				continue
			}
			if field != "" && t.Name.Local == "li" {
				inItem = true
				text.Reset()
			}
		case xml.CharData:
			if inItem {
				text.Write(t)
			}
		case xml.EndElement:
			if inItem && t.Name.Local == "li" {
				inItem = false
				v := strings.TrimSpace(text.String())
				switch {
				case v == "":
				case field == "title" && x.Title == "":
					x.Title = v
				case field == "creator":
					x.Creators = append(x.Creators, v)
				}
			}
			if field != "" && depth == fieldAt {
				field = ""
			}
			depth--
		}
	}
}
