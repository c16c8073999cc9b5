package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/mailplane/internal/http/errors"
	jwtx "github.com/dropDatabas3/mailplane/internal/jwt"
)

// AdminRole es el rol requerido para el plano de sync/update de templates.
const AdminRole = "templates:admin"

// AuthConfig configura la validación de bearer tokens.
type AuthConfig struct {
	Secret string
	Issuer string
	// Enforce en false (dev) deja pasar requests sin token con un actor fijo.
	Enforce  bool
	DevActor string
}

// WithAuth valida el bearer token y deja claims + actor en el contexto.
func WithAuth(cfg AuthConfig) Middleware {
	if cfg.DevActor == "" {
		cfg.DevActor = "dev"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if !cfg.Enforce {
					next.ServeHTTP(w, r.WithContext(WithActorID(r.Context(), cfg.DevActor)))
					return
				}
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}

			claims, err := jwtx.ParseHS256(raw, cfg.Secret, cfg.Issuer)
			if err != nil {
				errors.WriteError(w, errors.ErrTokenInvalid.WithCause(err))
				return
			}
			sub := ClaimString(claims, "sub")
			if sub == "" {
				errors.WriteError(w, errors.ErrTokenInvalid.WithDetail("missing sub"))
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = WithActorID(ctx, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole exige que las claims incluyan el rol dado.
// Sin enforcement de auth (dev) las claims faltan y se permite.
func RequireRole(role string, enforce bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enforce {
				next.ServeHTTP(w, r)
				return
			}
			cl := GetClaims(r.Context())
			if cl == nil {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("no claims in context"))
				return
			}
			for _, got := range ClaimStringSlice(cl, "roles") {
				if strings.EqualFold(got, role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			errors.WriteError(w, errors.ErrForbidden.WithDetail(role+" required"))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
