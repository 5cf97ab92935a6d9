// Package textnorm folds free text and enum values into a comparable form.
// This is part of the platform layer and contains no business logic.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics and collapses separators to "_",
// so "Saúde Estética" and "saude_estetica" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		stripped = strings.TrimSpace(s)
	}

	var b strings.Builder
	lastSep := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		if !lastSep && b.Len() > 0 {
			b.WriteByte('_')
			lastSep = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Equal reports whether a and b fold to the same value.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// FoldAll folds every value and drops empty results.
func FoldAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if f := Fold(v); f != "" {
			out = append(out, f)
		}
	}
	return out
}
