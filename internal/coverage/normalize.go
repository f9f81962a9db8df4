package coverage

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeCity folds a city name for comparison: accents are stripped,
// letters uppercased and whitespace collapsed. "São  Paulo " and "SAO PAULO"
// normalize to the same value.
func NormalizeCity(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}

func normalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
