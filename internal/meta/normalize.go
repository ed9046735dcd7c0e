package meta

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"
)

// UnknownAuthor is shown when no author survives normalization
const UnknownAuthor = "Unknown Author"

var (
	encodedWord     = regexp.MustCompile(`=\?([^?\s]+)\?([bBqQ])\?([^?\s]*)\?=`)
	encodedWordGap  = regexp.MustCompile(`(\?=)\s+(=\?)`)
	pathLike        = regexp.MustCompile(`[/\\][^/\\]*\.[A-Za-z][A-Za-z0-9]{0,4}$`)
	shortExtension  = regexp.MustCompile(`\.[A-Za-z][A-Za-z0-9]{0,4}$`)
	authorSeparator = regexp.MustCompile(`(?i)\s*(?:;|\n|&|\band\b)\s*`)
)

// CleanString turns a raw embedded title or author into a display string.
// Junk input (blank, fewer than two letters or digits, "untitled") yields
// fallback, or raw itself when fallback is empty.
func CleanString(raw, fallback string) string {
	if cleaned, ok := clean(raw); ok {
		return cleaned
	}
	if fallback != "" {
		return fallback
	}
	return raw
}

// maxCleanPasses bounds the fixpoint loop in clean
const maxCleanPasses = 8

// clean applies cleanOnce until the result stops changing. One pass can
// expose more work, e.g. a path hidden behind a vendor suffix.
func clean(raw string) (string, bool) {
	s, ok := cleanOnce(raw)
	for i := 1; ok && i < maxCleanPasses; i++ {
		next, nextOK := cleanOnce(s)
		if !nextOK {
			return "", false
		}
		if next == s {
			break
		}
		s = next
	}
	return s, ok
}

func cleanOnce(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}

	s := norm.NFC.String(removeControlChars(raw))
	s = decodeEncodedWords(s)
	s = norm.NFC.String(removeControlChars(s))
	s = collapseWhitespace(strings.ReplaceAll(s, "_", " "))

	if pathLike.MatchString(s) {
		s = s[strings.LastIndexAny(s, `/\`)+1:]
		s = strings.TrimSpace(shortExtension.ReplaceAllString(s, ""))
	}

	s = stripVendorSegments(s)

	if strings.EqualFold(s, "untitled") || countAlphanumeric(s) < 2 {
		return "", false
	}
	return s, true
}

// NormalizeAuthor splits a creator string on ";", "&", "and" or newlines,
// turns "Last, First" into "First Last" and joins the names with ", ".
func NormalizeAuthor(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var names []string
	for _, part := range authorSeparator.Split(raw, -1) {
		name, ok := clean(part)
		if !ok {
			continue
		}
		names = append(names, swapLastFirst(name))
	}
	return strings.Join(names, ", ")
}

// swapLastFirst handles "Doe, Jane" and "Tolkien, J. R. R.". The surname
// must be a single word so that "Jane Doe, John Roe" is left alone.
func swapLastFirst(name string) string {
	last, first, ok := strings.Cut(name, ",")
	if !ok || strings.Contains(first, ",") {
		return name
	}
	last, first = strings.TrimSpace(last), strings.TrimSpace(first)
	if last == "" || first == "" || strings.ContainsRune(last, ' ') {
		return name
	}
	if !alphabetic(last, "-'") || !alphabetic(first, " .-'") {
		return name
	}
	return first + " " + last
}

func alphabetic(s, extra string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !strings.ContainsRune(extra, r) {
			return false
		}
	}
	return true
}

// decodeEncodedWords decodes RFC 2047 words. Any failure returns the
// input unchanged.
func decodeEncodedWords(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}
	s = encodedWordGap.ReplaceAllString(s, "$1$2")

	failed := false
	out := encodedWord.ReplaceAllStringFunc(s, func(word string) string {
		m := encodedWord.FindStringSubmatch(word)
		decoded, err := decodeWord(m[1], m[2], m[3])
		if err != nil {
			failed = true
			return word
		}
		return decoded
	})
	if failed {
		return s
	}
	return out
}

func decodeWord(charset, encoding, payload string) (string, error) {
	var raw []byte
	switch strings.ToUpper(encoding) {
	case "B":
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			b, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
			if err != nil {
				return "", err
			}
		}
		raw = b
	case "Q":
		b, err := decodeQ(payload)
		if err != nil {
			return "", err
		}
		raw = b
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", err
	}
	text, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(text), nil
}

func decodeQ(payload string) ([]byte, error) {
	payload = strings.ReplaceAll(payload, "_", " ")
	out := make([]byte, 0, len(payload))
	for i := 0; i < len(payload); i++ {
		if payload[i] != '=' {
			out = append(out, payload[i])
			continue
		}
		if i+2 >= len(payload) {
			return nil, strconv.ErrSyntax
		}
		v, err := strconv.ParseUint(payload[i+1:i+3], 16, 8)
		if err != nil {
			return nil, err
		}
		out = append(out, byte(v))
		i += 2
	}
	return out, nil
}

// removeControlChars drops control characters including NUL; line breaks
// and tabs become spaces.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r), r == '\uFEFF':
			return -1
		}
		return r
	}, s)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func countAlphanumeric(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
