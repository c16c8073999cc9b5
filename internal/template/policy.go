package template

import "strings"

// RenderPolicy decide cómo se escapa el valor de un token en el canal HTML.
type RenderPolicy string

const (
	// PolicyEscapedText escapa el valor como texto plano (default).
	PolicyEscapedText RenderPolicy = "escaped_text"
	// PolicyRawHTML sustituye el valor tal cual (markup confiable del caller).
	PolicyRawHTML RenderPolicy = "raw_html"
	// PolicyURL sanitiza el valor contra un allowlist de esquemas y luego escapa.
	PolicyURL RenderPolicy = "url"
)

// UnresolvedPolicy decide qué pasa con tokens sin valor en modo send.
type UnresolvedPolicy string

const (
	UnresolvedBlock             UnresolvedPolicy = "block"
	UnresolvedWarn              UnresolvedPolicy = "warn"
	UnresolvedAllowlistFallback UnresolvedPolicy = "allowlist_fallback"
)

// VariablePolicy es la política persistida por token canónico.
type VariablePolicy struct {
	Key       string       `json:"key"`
	Render    RenderPolicy `json:"render_policy"`
	ValueType string       `json:"value_type,omitempty"`
}

// Claves bien conocidas que son links aunque no terminen en _URL.
var wellKnownLinkKeys = map[string]struct{}{
	"BROWSER_LINK":     {},
	"ACTION_LINK":      {},
	"UNSUBSCRIBE_LINK": {},
}

// ResolvePolicy resuelve la política de render para una clave canónica.
// Prioridad: override explícito > heurística de nombre > escaped_text.
// Nunca devuelve una política desconocida: cualquier valor raro degrada
// a escaped_text (default seguro).
func ResolvePolicy(key string, overrides map[string]RenderPolicy) RenderPolicy {
	if p, ok := overrides[key]; ok {
		switch p {
		case PolicyEscapedText, PolicyRawHTML, PolicyURL:
			return p
		}
	}
	if strings.HasSuffix(key, "_URL") {
		return PolicyURL
	}
	if _, ok := wellKnownLinkKeys[key]; ok {
		return PolicyURL
	}
	return PolicyEscapedText
}

// FallbackValue devuelve el valor de degradación built-in para una clave
// allowlisted sin valor explícito. Links degradan a "#", nombres a un
// saludo genérico, el resto a cadena vacía.
func FallbackValue(key string) string {
	if strings.HasSuffix(key, "_URL") || key == "SITE_URL" {
		return "#"
	}
	if _, ok := wellKnownLinkKeys[key]; ok {
		return "#"
	}
	if key == "NAME" || strings.HasSuffix(key, "_NAME") {
		return "there"
	}
	return ""
}
