// Package slug turns display names into URL-safe identifiers.
package slug

import (
	"regexp"
	"strings"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	// Common Latin letters with diacritics, including the Turkish set.
	fold = strings.NewReplacer(
		"ç", "c", "ğ", "g", "ı", "i", "i\u0307", "i", "ö", "o", "ş", "s", "ü", "u",
		"á", "a", "à", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
		"é", "e", "è", "e", "ê", "e", "ë", "e",
		"í", "i", "ì", "i", "î", "i", "ï", "i",
		"ó", "o", "ò", "o", "ô", "o", "õ", "o", "ø", "o",
		"ú", "u", "ù", "u", "û", "u",
		"ñ", "n", "ß", "ss", "&", " and ",
	)
)

// Generate lowercases name, folds diacritics, and joins the remaining
// alphanumeric runs with single hyphens.
//
//	Generate("Kadın Giyim")    // "kadin-giyim"
//	Generate("Shoes & Boots")  // "shoes-and-boots"
func Generate(name string) string {
	s := fold.Replace(strings.ToLower(strings.TrimSpace(name)))
	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}
