package csv

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// headerCleaner folds compatibility forms (full-width letters, ligatures) and
// removes control and format runes such as zero-width spaces that spreadsheet
// exports leave in header cells.
var headerCleaner = transform.Chain(
	norm.NFKC,
	runes.Remove(runes.In(unicode.Cc)),
	runes.Remove(runes.In(unicode.Cf)),
)

// NormalizeHeader returns the comparable form of a header cell: cleaned,
// trimmed, lower-cased, with inner spaces replaced by underscores.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, utf8BOM)
	if s, _, err := transform.String(headerCleaner, h); err == nil {
		h = s
	}
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	return headers
}

// SkipBOM returns a reader positioned after a leading UTF-8 BOM, if any. A
// BOM in front of a quoted header cell otherwise reads as a bare quote.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
