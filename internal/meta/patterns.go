package meta

import (
	"regexp"
	"strings"
)

// vendorPatterns match segments that name the tool that produced a file
// rather than the work itself, as in "Annual Report - Microsoft Word".
var vendorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^calibre\b`),
	regexp.MustCompile(`(?i)^adobe\b`),
	regexp.MustCompile(`(?i)^acrobat\b`),
	regexp.MustCompile(`(?i)^(acrobat )?distiller\b`),
	regexp.MustCompile(`(?i)^microsoft\b`),
	regexp.MustCompile(`(?i)^(ms )?word$`),
	regexp.MustCompile(`(?i)^pdfium$`),
	regexp.MustCompile(`(?i)^ghostscript\b`),
	regexp.MustCompile(`(?i)^kindlegen\b`),
	regexp.MustCompile(`(?i)^sigil\b`),
	regexp.MustCompile(`(?i)^pages$`),
	regexp.MustCompile(`(?i)^(libre|open) ?office\b`),
	regexp.MustCompile(`(?i)^pdf ?tex\b`),
	regexp.MustCompile(`(?i)^(la)?tex\b`),
	regexp.MustCompile(`(?i)^quartz\b`),
	regexp.MustCompile(`(?i)^itext\b`),
	regexp.MustCompile(`(?i)^scribus\b`),
	regexp.MustCompile(`(?i)^indesign\b`),
	regexp.MustCompile(`(?i)^writer$`),
	regexp.MustCompile(`(?i)^pdf ?creator\b`),
	regexp.MustCompile(`(?i)^(epub|pdf) ?converter\b`),
	regexp.MustCompile(`(?i)^z-?library\b`),
	regexp.MustCompile(`(?i)^ibooks? author\b`),
	regexp.MustCompile(`(?i)^powered by\b`),
}

// IsVendorName reports whether s names a producing tool
func IsVendorName(s string) bool {
	s = strings.TrimSpace(s)
	for _, re := range vendorPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// stripVendorSegments keeps only the leading segment of an " - " separated
// string when any later segment names a producing tool.
func stripVendorSegments(s string) string {
	parts := strings.Split(s, " - ")
	if len(parts) < 2 {
		return s
	}
	for _, p := range parts[1:] {
		if IsVendorName(p) {
			return strings.TrimSpace(parts[0])
		}
	}
	return s
}
