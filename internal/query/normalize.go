// Package query translates filter/sort requests into storage filter and
// sort primitives using per-field-type semantics.
package query

import (
	"regexp"
	"strings"
	"unicode"
)

// accentClasses widens each bare letter with common accented variants, so a
// search for "joao" matches "joão" without a text index. Matching itself is
// case-insensitive at the engine level.
var accentClasses = map[rune]string{
	'a': "[aáàâãäå]",
	'e': "[eéèêë]",
	'i': "[iíìîï]",
	'o': "[oóòôõö]",
	'u': "[uúùûü]",
	'c': "[cç]",
	'n': "[nñ]",
}

// Normalize turns free text into an accent-insensitive, regex-safe pattern:
// metacharacters are escaped, then every bare a/e/i/o/u/c/n (either case) is
// replaced with a character class of its accented variants.
func Normalize(term string) string {
	escaped := regexp.QuoteMeta(term)

	var b strings.Builder
	b.Grow(len(escaped))
	for _, r := range escaped {
		if class, ok := accentClasses[unicode.ToLower(r)]; ok {
			b.WriteString(class)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
