package reference

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// administrative prefixes stripped before comparing names, longest first.
var namePrefixes = []string{
	"thanh pho ",
	"tinh ",
	"tp. ",
	"tp ",
	"phuong ",
	"xa ",
	"dac khu ",
}

// Normalize folds a Vietnamese place name for comparison: diacritics are
// removed, đ becomes d, case is lowered and whitespace collapsed.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	folded = strings.Map(func(r rune) rune {
		switch r {
		case 'đ', 'Đ':
			return 'd'
		}
		return unicode.ToLower(r)
	}, folded)

	return strings.Join(strings.Fields(folded), " ")
}

// stripPrefix removes a leading administrative type from a normalized name.
func stripPrefix(name string) string {
	for _, p := range namePrefixes {
		if strings.HasPrefix(name, p) {
			return strings.TrimPrefix(name, p)
		}
	}
	return name
}

// matchesName reports whether query names u, ignoring diacritics, case and the
// administrative type prefix.
func matchesName(query string, u AdministrativeUnit) bool {
	q := stripPrefix(Normalize(query))
	if q == "" {
		return false
	}
	name := stripPrefix(Normalize(u.Name))
	if name == q || strings.Contains(name, q) {
		return true
	}
	return strings.Contains(Normalize(u.NameWithType), q) || (u.Slug != "" && strings.ReplaceAll(u.Slug, "-", " ") == q)
}
