// Package normalize maps human-authored labels to canonical identifiers.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	separatorRe  = regexp.MustCompile(`[\s./()\-_]+`)
	invalidRe    = regexp.MustCompile(`[^a-z0-9_]`)
	underscoreRe = regexp.MustCompile(`_+`)
)

// Identifier returns the canonical form of label: accents folded, lowercase,
// separator runs collapsed to a single underscore and every rune outside
// [a-z0-9_] removed. The result may be empty.
func Identifier(label string) string {
	s := FoldAccents(strings.ToLower(strings.TrimSpace(label)))
	s = separatorRe.ReplaceAllString(s, "_")
	s = invalidRe.ReplaceAllString(s, "")
	s = underscoreRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Column is Identifier with a positional fallback for labels that normalize
// to nothing. index is 0-based.
func Column(label string, index int) string {
	if id := Identifier(label); id != "" {
		return id
	}
	return "col_" + strconv.Itoa(index+1)
}

// IsIdentifier reports whether s is already a non-empty canonical identifier.
func IsIdentifier(s string) bool {
	return s != "" && Identifier(s) == s
}

// FoldAccents removes combining marks (á -> a, ñ -> n) and leaves the rest
// of the string untouched.
func FoldAccents(s string) string {
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		return s
	}
	return out
}
