// Package normalize canonicalizes raw OCR text before it is parsed.
package normalize

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/width"
)

// fullwidthFold maps full-width compatibility forms (U+FF01..U+FF5E, the
// ideographic space and the full-width currency signs) to their half-width
// equivalents. Wide CJK punctuation such as 、 and 。 is left untouched.
var fullwidthFold = runes.Map(func(r rune) rune {
	if r == '\u3000' {
		return ' '
	}
	p := width.LookupRune(r)
	if p.Kind() != width.EastAsianFullwidth {
		return r
	}
	if n := p.Narrow(); n != 0 {
		return n
	}
	return r
})

var lineEndings = strings.NewReplacer("\r\n", "\n")

// Text folds full-width characters to half-width and turns CRLF into LF.
// It never changes the number or order of lines and is idempotent.
func Text(s string) string {
	if s == "" {
		return s
	}
	out, _, err := transform.String(fullwidthFold, s)
	if err != nil {
		out = s
	}
	return lineEndings.Replace(out)
}
