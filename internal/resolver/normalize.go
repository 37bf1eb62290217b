package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// canonicalizer folds a mention to its canonical form: NFKD decomposition,
// combining-mark removal, NFKC recomposition. Built once, reused.
var canonicalizer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFKC,
)

var folder = cases.Fold()

// Canonicalize produces the deduplication key for a mention: compatibility
// normalization (full-width forms, ligatures), diacritic stripping, Unicode
// case folding and whitespace collapsing. Scripts without case or marks
// (kana, han) pass through unchanged apart from width normalization.
func Canonicalize(text string) string {
	out, _, err := transform.String(canonicalizer, text)
	if err != nil {
		// Malformed input: fall back to the raw text rather than dropping it
		out = text
	}
	out = folder.String(out)
	return strings.Join(strings.Fields(out), " ")
}
