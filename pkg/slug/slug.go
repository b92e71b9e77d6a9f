// Package slug derives URL handles from display names.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	separatorRegexp = regexp.MustCompile(`[^a-z0-9]+`)
	handleRegexp    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// MaxLength is the longest handle accepted by IsValid.
const MaxLength = 255

// Letters that NFD does not split into base letter plus mark.
var folds = strings.NewReplacer(
	"ı", "i", "ß", "ss", "æ", "ae", "œ", "oe", "ø", "o", "ł", "l", "đ", "d", "þ", "th",
)

// Generate lowercases name, folds accented letters to ASCII and joins the
// remaining alphanumeric runs with single hyphens.
//
//   - "Home & Kitchen" → "home-kitchen"
//   - "Crème Brûlée" → "creme-brulee"
//   - "Çocuk Ürünleri" → "cocuk-urunleri"
func Generate(name string) string {
	s := folds.Replace(strings.ToLower(strings.TrimSpace(name)))
	s = stripMarks(s)
	s = separatorRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// IsValid reports whether handle is already a canonical slug: lowercase ASCII
// letters and digits separated by single hyphens.
func IsValid(handle string) bool {
	return len(handle) <= MaxLength && handleRegexp.MatchString(handle)
}
