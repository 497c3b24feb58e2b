// Package slug derives URL-friendly identifiers from category names.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxLength matches the categories.slug column width
const MaxLength = 90

var (
	disallowed      = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace      = regexp.MustCompile(`\s+`)
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// Generate lower-cases s, strips accents and punctuation, and joins words with
// hyphens. "Cartes Pokémon & TCG" becomes "cartes-pokemon-tcg".
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(stripMarks(s)))
	result = disallowed.ReplaceAllString(result, "")
	result = whitespace.ReplaceAllString(result, "-")
	result = multipleHyphens.ReplaceAllString(result, "-")
	result = strings.Trim(result, "-")
	if len(result) > MaxLength {
		result = strings.TrimRight(result[:MaxLength], "-")
	}
	return result
}

func stripMarks(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
