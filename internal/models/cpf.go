package models

import "strings"

// NormalizeCPF strips formatting characters from a CPF, leaving digits only.
// "123.456.789-00" and "12345678900" normalize to the same value.
func NormalizeCPF(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
