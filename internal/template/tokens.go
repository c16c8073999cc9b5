package template

import "sort"

// ExtractTokens devuelve los tokens canónicos referenciados por los
// strings dados, únicos y ordenados.
func ExtractTokens(srcs ...string) []string {
	seen := map[string]struct{}{}
	for _, src := range srcs {
		for _, m := range tokenPattern.FindAllStringSubmatch(src, -1) {
			if k := Normalize(m[1]); k != "" {
				seen[k] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MapTokens reescribe cada placeholder usando el mapping por clave
// canónica. Claves sin entrada quedan como placeholder canónico literal;
// el caller decide si eso es un error.
func MapTokens(src string, mapping map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(src, func(m string) string {
		sub := tokenPattern.FindStringSubmatch(m)
		key := Normalize(sub[1])
		if key == "" {
			return m
		}
		if repl, ok := mapping[key]; ok {
			return repl
		}
		return "{{" + key + "}}"
	})
}
