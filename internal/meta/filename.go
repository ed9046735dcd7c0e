package meta

import (
	"path/filepath"
	"strings"
)

// TitleFromFilename derives the placeholder title used until embedded
// metadata is known: directory and extension dropped, underscores read
// as spaces, and a trailing "-Calibre" style tool suffix removed.
func TitleFromFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = collapseWhitespace(strings.ReplaceAll(base, "_", " "))

	if i := strings.LastIndex(base, "-"); i > 0 {
		if IsVendorName(base[i+1:]) {
			base = strings.TrimSpace(base[:i])
		}
	}
	base = stripVendorSegments(base)

	if base == "" {
		return strings.TrimSpace(name)
	}
	return base
}
