package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// maxEntrySize caps a single decompressed entry.
const maxEntrySize int64 = 128 << 20

// lookup finds an entry by exact name, then case-insensitively
func lookup(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	return nil
}

// readEntry reads an entry fully, refusing entries larger than maxEntrySize
// even when the header under-reports the size.
func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return nil, fmt.Errorf("epub: entry %s too large (%d bytes)", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("epub: read %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("epub: entry %s exceeds %d bytes", f.Name, maxEntrySize)
	}
	return stripBOM(data), nil
}

// resolve joins href onto the directory of base. Paths escaping the
// archive root resolve to "".
func resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if href == "" || strings.HasPrefix(href, "/") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	p := path.Clean(path.Join(path.Dir(base), href))
	if p == ".." || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return ""
	}
	return p
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
