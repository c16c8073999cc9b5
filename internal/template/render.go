package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Mode es el contexto de un render. Solo send bloquea por tokens sin resolver.
type Mode string

const (
	ModeSend    Mode = "send"
	ModeTest    Mode = "test"
	ModePreview Mode = "browser_preview"
)

// DegradationReasonAllowlistFallback se reporta cuando un template
// auth-critical rindió con valores de fallback en vez de bloquear.
const DegradationReasonAllowlistFallback = "auth_critical_allowlist_fallback_applied"

// Template es la entidad de template tal como la ve el renderer.
// Inmutable durante un render; la edita un workflow externo.
type Template struct {
	Slug                  string
	Subject               string
	HTMLBody              string
	TextBody              string // opcional; si falta se deriva del HTML
	IsAuthCritical        bool
	UnresolvedPolicy      UnresolvedPolicy
	AllowlistFallbackKeys []string
}

// Degradation registra una relajación controlada del blocking estricto.
type Degradation struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`
}

// Result es el output de Render. Función pura de los inputs: sin side
// effects ni persistencia. Subject/HTML/Text siempre son strings.
type Result struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`

	// UsedVariables: todos los tokens canónicos referenciados, ordenados.
	UsedVariables []string `json:"used_variables"`
	// Unresolved: tokens sin valor después de aplicar políticas.
	Unresolved []string `json:"unresolved_tokens"`
	// Warnings es texto advisory; los callers no deben usarlo para control flow.
	Warnings []string `json:"warnings,omitempty"`

	Blocked     bool        `json:"blocked"`
	Degradation Degradation `json:"degradation"`
}

// tokenPattern: doble llave, identificador opcionalmente con punto inicial,
// whitespace interno arbitrario. El grupo 1 es la clave cruda.
var tokenPattern = regexp.MustCompile(`\{\{\s*(\.?[A-Za-z0-9][A-Za-z0-9._-]*)\s*\}\}`)

// Render renderiza un template con una bolsa de variables bajo las políticas
// de escape y de tokens sin resolver. Nunca lanza por datos faltantes: el
// estado problemático se reporta vía Blocked/Unresolved/Warnings.
func Render(tpl Template, mode Mode, vars map[string]string, policies map[string]RenderPolicy, fallbacks map[string]string) Result {
	res := Result{Degradation: Degradation{}}

	// 1) Tokens usados en los tres canales.
	used := map[string]struct{}{}
	for _, src := range []string{tpl.Subject, tpl.HTMLBody, tpl.TextBody} {
		for _, m := range tokenPattern.FindAllStringSubmatch(src, -1) {
			if k := Normalize(m[1]); k != "" {
				used[k] = struct{}{}
			}
		}
	}

	// 2) Normalizar claves de la bolsa. La última escritura gana si dos
	// claves crudas colisionan en la misma canónica.
	bag := make(map[string]string, len(vars))
	for k, v := range vars {
		if ck := Normalize(k); ck != "" {
			bag[ck] = v
		}
	}
	normPolicies := make(map[string]RenderPolicy, len(policies))
	for k, p := range policies {
		if ck := Normalize(k); ck != "" {
			normPolicies[ck] = p
		}
	}

	unresolved := func() []string {
		var out []string
		for k := range used {
			if _, ok := bag[k]; !ok {
				out = append(out, k)
			}
		}
		sort.Strings(out)
		return out
	}

	// 3) Política de degradación: solo send + auth-critical + allowlist_fallback.
	if mode == ModeSend && tpl.IsAuthCritical && tpl.UnresolvedPolicy == UnresolvedAllowlistFallback {
		allow := make(map[string]struct{}, len(tpl.AllowlistFallbackKeys))
		for _, k := range tpl.AllowlistFallbackKeys {
			if ck := Normalize(k); ck != "" {
				allow[ck] = struct{}{}
			}
		}
		normFallbacks := make(map[string]string, len(fallbacks))
		for k, v := range fallbacks {
			if ck := Normalize(k); ck != "" {
				normFallbacks[ck] = v
			}
		}
		for _, tok := range unresolved() {
			if _, ok := allow[tok]; !ok {
				continue
			}
			val, ok := normFallbacks[tok]
			if !ok {
				val = FallbackValue(tok)
			}
			bag[tok] = val
			res.Degradation.Active = true
			res.Degradation.Reason = DegradationReasonAllowlistFallback
			res.Warnings = append(res.Warnings, fmt.Sprintf("auth-critical fallback applied for %s", tok))
		}
	}

	// 4) Blocking: solo send bloquea; test y preview siempre renderizan.
	res.Unresolved = unresolved()
	if len(res.Unresolved) > 0 {
		res.Warnings = append(res.Warnings, "unresolved tokens: "+strings.Join(res.Unresolved, ", "))
		if mode == ModeSend {
			res.Blocked = true
		}
	}

	// 5) Render por canal. Tokens sin resolver quedan como {{CANONICAL}}
	// literal para que el estado sea inspeccionable en modos no bloqueantes.
	res.Subject = substitute(tpl.Subject, bag, func(string) RenderPolicy { return PolicyEscapedText })
	res.HTML = substitute(tpl.HTMLBody, bag, func(key string) RenderPolicy {
		return ResolvePolicy(key, normPolicies)
	})
	if tpl.TextBody != "" {
		res.Text = substitute(tpl.TextBody, bag, func(string) RenderPolicy { return PolicyEscapedText })
	} else {
		res.Text = HTMLToText(res.HTML)
	}

	res.UsedVariables = make([]string, 0, len(used))
	for k := range used {
		res.UsedVariables = append(res.UsedVariables, k)
	}
	sort.Strings(res.UsedVariables)
	return res
}

// substitute reemplaza cada placeholder por su valor escapado según la
// política resuelta para la clave canónica. Claves sin valor se reescriben
// a su forma canónica literal.
func substitute(src string, bag map[string]string, policyFor func(key string) RenderPolicy) string {
	return tokenPattern.ReplaceAllStringFunc(src, func(m string) string {
		sub := tokenPattern.FindStringSubmatch(m)
		key := Normalize(sub[1])
		if key == "" {
			return m
		}
		val, ok := bag[key]
		if !ok {
			return "{{" + key + "}}"
		}
		switch policyFor(key) {
		case PolicyRawHTML:
			return val
		case PolicyURL:
			return escapeHTML(SanitizeURL(val))
		default:
			return escapeHTML(val)
		}
	})
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }
