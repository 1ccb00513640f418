package inventory

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NameKey normaliza un nombre de producto para comparar sin importar mayúsculas, tildes
// ni espacios repetidos: "  Café  Molido " → "cafe molido".
func NameKey(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
