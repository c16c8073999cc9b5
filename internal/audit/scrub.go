package audit

import "regexp"

// Patrones de material sensible que jamás debe llegar al ledger ni a los
// logs: credenciales bearer, strings con forma de JWT y runs opacos
// largos de alfanumérico (API keys, tokens de management).
var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)
	jwtPattern    = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]*\b`)
	opaquePattern = regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`)
)

// Scrub reemplaza material con pinta de secreto por "[redacted]".
// Se aplica a todo texto de error/detalle antes de persistirlo o loguearlo.
func Scrub(s string) string {
	s = bearerPattern.ReplaceAllString(s, "[redacted]")
	s = jwtPattern.ReplaceAllString(s, "[redacted]")
	s = opaquePattern.ReplaceAllString(s, "[redacted]")
	return s
}
