package template

import (
	"regexp"
	"strings"
	"unicode"
)

var nonAlnumRun = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Normalize canonicaliza una clave de placeholder a UPPER_SNAKE_CASE.
// Acepta camelCase, claves con punto inicial (".UnsubscribeURL") y
// separadores arbitrarios ("order-id"). Es total e idempotente: nunca
// falla, y entrada basura normaliza a cadena vacía (los callers deben
// tratar "" como "sin token").
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, ".")
	if s == "" {
		return ""
	}

	// Insertar '_' en el borde camelCase: minúscula/dígito seguido de mayúscula.
	var b strings.Builder
	b.Grow(len(s) + 4)
	prev := rune(0)
	for _, r := range s {
		if prev != 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			b.WriteByte('_')
		}
		b.WriteRune(r)
		prev = r
	}

	out := nonAlnumRun.ReplaceAllString(b.String(), "_")
	out = strings.Trim(out, "_")
	return strings.ToUpper(out)
}
