// Package router arma el árbol de rutas del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/mailplane/internal/http/controllers"
	httperrors "github.com/dropDatabas3/mailplane/internal/http/errors"
	mw "github.com/dropDatabas3/mailplane/internal/http/middlewares"
)

// Deps contiene todas las dependencias del router.
type Deps struct {
	Sync      *controllers.SyncController
	Templates *controllers.TemplatesController
	Health    *controllers.HealthController

	Auth      mw.AuthConfig
	RateLimit mw.RateLimitConfig
	CORS      []string
	// MaxBodyBytes limita los bodies JSON. 0 = sin límite.
	MaxBodyBytes int64

	// Registry para /metrics. Nil usa el registry default.
	Metrics *prometheus.Registry
}

// New construye el handler raíz con toda la cadena de middlewares.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Infra endpoints: sin auth ni rate limit.
	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	authMW := mw.WithAuth(deps.Auth)
	adminMW := mw.RequireRole(mw.AdminRole, deps.Auth.Enforce)
	bodyMW := mw.WithBodyLimit(deps.MaxBodyBytes)

	// Plano de lectura/preview: requiere actor autenticado.
	r.Group(func(r chi.Router) {
		r.Use(authMW, bodyMW)
		r.Get("/v1/templates/{slug}", deps.Templates.Get)
		r.Post("/v1/templates/{slug}/preview", deps.Templates.Preview)
		r.Post("/v1/templates/{slug}/test-send", deps.Templates.TestSend)
	})

	// Plano admin: rol elevado obligatorio.
	r.Group(func(r chi.Router) {
		r.Use(authMW, adminMW, bodyMW)
		r.Post("/v1/admin/templates/sync", deps.Sync.Sync)
		r.Put("/v1/admin/templates/{slug}", deps.Templates.Update)
	})

	// Cadena externa: request id -> recover -> cors -> rate.
	outer := []mw.Middleware{
		mw.WithRequestID(),
		mw.WithRecover(),
	}
	if len(deps.CORS) > 0 {
		outer = append(outer, mw.WithCORS(deps.CORS))
	}
	if deps.RateLimit.Limiter != nil {
		deps.RateLimit.Whitelist = append(deps.RateLimit.Whitelist, "/healthz", "/readyz", "/metrics")
		outer = append(outer, mw.WithRateLimit(deps.RateLimit))
	}
	return mw.Chain(r, outer...)
}
