package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

type container struct {
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type packageDoc struct {
	Metadata struct {
		Titles   []dcElement `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creators []dcElement `xml:"http://purl.org/dc/elements/1.1/ creator"`
		Language []dcElement `xml:"http://purl.org/dc/elements/1.1/ language"`
		Metas    []struct {
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Property string `xml:"property,attr"`
			Refines  string `xml:"refines,attr"`
			Value    string `xml:",chardata"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest []manifestItem `xml:"manifest>item"`
	Spine    []struct {
		IDRef  string `xml:"idref,attr"`
		Linear string `xml:"linear,attr"`
	} `xml:"spine>itemref"`
	Guide []struct {
		Type string `xml:"type,attr"`
		Href string `xml:"href,attr"`
	} `xml:"guide>reference"`
}

type dcElement struct {
	Value  string `xml:",chardata"`
	ID     string `xml:"id,attr"`
	FileAs string `xml:"file-as,attr"`
	Role   string `xml:"role,attr"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// packagePath locates the OPF through META-INF/container.xml, falling back
// to the first .opf entry in the archive.
func packagePath(zr *zip.Reader) (string, error) {
	if f := lookup(zr, "META-INF/container.xml"); f != nil {
		data, err := readEntry(f)
		if err != nil {
			return "", err
		}
		var c container
		if err := xml.Unmarshal(data, &c); err != nil {
			return "", fmt.Errorf("epub: parse container.xml: %w", err)
		}
		for _, rf := range c.RootFiles {
			if p := strings.TrimSpace(rf.FullPath); p != "" {
				return p, nil
			}
		}
	}
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("%w: no package document", ErrInvalid)
}

func parsePackage(data []byte) (*packageDoc, error) {
	var pkg packageDoc
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&pkg); err != nil {
		return nil, fmt.Errorf("epub: parse package: %w", err)
	}
	return &pkg, nil
}

// authors resolves dc:creator entries, reading EPUB 3 refinements for
// file-as and role when the attributes are absent.
func (p *packageDoc) authors() []Author {
	refined := make(map[string]map[string]string)
	for _, m := range p.Metadata.Metas {
		id := strings.TrimPrefix(strings.TrimSpace(m.Refines), "#")
		if id == "" || m.Property == "" {
			continue
		}
		if refined[id] == nil {
			refined[id] = make(map[string]string)
		}
		refined[id][m.Property] = strings.TrimSpace(m.Value)
	}

	var out []Author
	for _, c := range p.Metadata.Creators {
		name := strings.TrimSpace(c.Value)
		if name == "" {
			continue
		}
		a := Author{Name: name, FileAs: c.FileAs, Role: c.Role}
		if r := refined[c.ID]; r != nil {
			if a.FileAs == "" {
				a.FileAs = r["file-as"]
			}
			if a.Role == "" {
				a.Role = r["role"]
			}
		}
		out = append(out, a)
	}
	return out
}
