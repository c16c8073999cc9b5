package template

import (
	"regexp"
	"strings"
)

var (
	styleBlock  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	scriptBlock = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	anyTag      = regexp.MustCompile(`(?s)<[^>]*>`)
	blockTag    = regexp.MustCompile(`(?i)<(?:br|/p|/div|/tr|/h[1-6]|/li)[^>]*>`)
	wsRun       = regexp.MustCompile(`[ \t\r\f]+`)
	nlRun       = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText deriva el canal de texto plano a partir del HTML renderizado:
// elimina bloques style/script, quita el resto de tags y colapsa whitespace.
// Es una derivación best-effort, no un parser de HTML.
func HTMLToText(html string) string {
	s := styleBlock.ReplaceAllString(html, "")
	s = scriptBlock.ReplaceAllString(s, "")
	// Tags de bloque comunes a saltos de línea para conservar legibilidad.
	s = blockTag.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ").Replace(s)
	s = wsRun.ReplaceAllString(s, " ")
	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		lines = append(lines, strings.TrimSpace(ln))
	}
	s = strings.Join(lines, "\n")
	s = nlRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// SanitizeURL aplica el allowlist de destinos para valores con política url:
// http(s) absoluto, paths que empiezan con "/" (no "//"), fragmentos "#" y
// mailto:. Cualquier otra cosa (javascript:, data:, protocol-relative)
// se reemplaza por "#".
func SanitizeURL(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "#"
	}
	lower := strings.ToLower(v)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return v
	case strings.HasPrefix(lower, "mailto:"):
		return v
	case strings.HasPrefix(v, "//"):
		return "#"
	case strings.HasPrefix(v, "/"), strings.HasPrefix(v, "#"):
		return v
	default:
		return "#"
	}
}
