// Package server arma el handler HTTP con todas las dependencias cableadas.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/mailplane/internal/audit"
	"github.com/dropDatabas3/mailplane/internal/cache"
	"github.com/dropDatabas3/mailplane/internal/config"
	"github.com/dropDatabas3/mailplane/internal/delivery"
	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	"github.com/dropDatabas3/mailplane/internal/http/controllers"
	mw "github.com/dropDatabas3/mailplane/internal/http/middlewares"
	"github.com/dropDatabas3/mailplane/internal/http/router"
	"github.com/dropDatabas3/mailplane/internal/mailer"
	"github.com/dropDatabas3/mailplane/internal/metrics"
	"github.com/dropDatabas3/mailplane/internal/mgmt"
	"github.com/dropDatabas3/mailplane/internal/observability/logger"
	"github.com/dropDatabas3/mailplane/internal/rate"
	"github.com/dropDatabas3/mailplane/internal/store/memory"
	"github.com/dropDatabas3/mailplane/internal/store/pg"
	"github.com/dropDatabas3/mailplane/internal/syncer"
	tmpl "github.com/dropDatabas3/mailplane/internal/template"
)

// repos agrupa los repositorios sin importar el driver.
type repos struct {
	Templates   repository.TemplateRepository
	Policies    repository.VariablePolicyRepository
	Idempotency repository.IdempotencyRepository
	Events      repository.IntegrationEventRepository
	Audit       repository.AuditRepository
}

// Build construye el handler raíz y devuelve el cleanup de recursos.
func Build(ctx context.Context, cfg *config.Config) (http.Handler, func() error, error) {
	log := logger.L().With(logger.Component("server"))

	// 1. Storage
	var (
		r       repos
		pinger  controllers.Pinger
		cleanup = func() error { return nil }
	)
	switch cfg.Storage.Driver {
	case "memory":
		st := memory.New()
		seedDev(st)
		r = repos{st.Templates, st.Policies, st.Idempotency, st.Events, st.Audit}
		log.Warn("using in-memory storage, state is lost on restart")
	default:
		st, err := pg.New(ctx, cfg.Storage.DSN, pg.Options{
			MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
			ConnMaxLifetime: config.Dur(cfg.Storage.Postgres.ConnMaxLifetime),
		})
		if err != nil {
			return nil, nil, err
		}
		r = repos{st.Templates, st.Policies, st.Idempotency, st.Events, st.Audit}
		pinger = st
		cleanup = func() error { st.Close(); return nil }
	}

	// 2. Redis (cache + rate limit del edge)
	var redisClient *rdb.Client
	if cfg.Cache.Kind == "redis" {
		redisClient = rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
	}
	var tplCache cache.Cache
	if redisClient != nil {
		tplCache = cache.NewRedis(redisClient)
	} else {
		tplCache = cache.NewMemory(config.Dur(cfg.Cache.Memory.DefaultTTL))
	}

	var edgeLimiter rate.Limiter
	if cfg.Rate.Enabled && redisClient != nil {
		edgeLimiter = rate.NewRedisLimiter(redisClient, cfg.Cache.Redis.Prefix+"rl:",
			cfg.Rate.HTTP.Limit, config.Dur(cfg.Rate.HTTP.Window))
	}

	// 3. Management API client
	mgmtClient, err := buildMgmtClient(cfg)
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	// 4. Núcleo de sync
	auditor := &audit.Logger{Repo: r.Audit}
	orch := &syncer.Orchestrator{
		Templates:   r.Templates,
		Idempotency: r.Idempotency,
		Window: &rate.EventWindow{
			Events:      r.Events,
			Integration: syncer.Integration,
			Action:      syncer.Action,
			Max:         cfg.Rate.Sync.Limit,
			Window:      config.Dur(cfg.Rate.Sync.Window),
		},
		Mgmt:  mgmtClient,
		Audit: auditor,
	}
	rollback := &syncer.RollbackCoordinator{Templates: r.Templates, Orchestrator: orch}

	// 5. Delivery
	sender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		Username:           cfg.SMTP.Username,
		Password:           cfg.SMTP.Password,
		FromEmail:          cfg.SMTP.From,
		TLSMode:            cfg.SMTP.TLS,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
	})
	deliverySvc := &delivery.Service{
		Templates: r.Templates,
		Policies:  r.Policies,
		Sender:    sender,
		Cache:     tplCache,
		CacheTTL:  config.Dur(cfg.Templates.CacheTTL),
		Fallbacks: cfg.Templates.Fallbacks,
	}

	// 6. Métricas (registry global, Register tolera doble registro)
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	// 7. Router
	handler := router.New(router.Deps{
		Sync:      controllers.NewSyncController(orch),
		Templates: controllers.NewTemplatesController(r.Templates, deliverySvc, rollback),
		Health:    controllers.NewHealthController(pinger),
		Auth: mw.AuthConfig{
			Secret:  cfg.JWT.Secret,
			Issuer:  cfg.JWT.Issuer,
			Enforce: cfg.JWT.Secret != "",
		},
		RateLimit:    mw.RateLimitConfig{Limiter: edgeLimiter},
		CORS:         cfg.Server.CORSAllowedOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	finalCleanup := func() error {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return cleanup()
	}
	return handler, finalCleanup, nil
}

func buildMgmtClient(cfg *config.Config) (*mgmt.Client, error) {
	base := cfg.Mgmt.BaseURL
	if base == "" {
		base = "https://api.supabase.com"
	}
	hosts := cfg.Mgmt.AllowedHosts
	if len(hosts) == 0 {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("server: mgmt base url: %w", err)
		}
		hosts = []string{u.Hostname()}
	}
	return mgmt.New(mgmt.Config{
		BaseURL:      base,
		ProjectRef:   cfg.Mgmt.ProjectRef,
		Token:        cfg.Mgmt.Token,
		AllowedHosts: hosts,
		Timeout:      config.Dur(cfg.Mgmt.Timeout),
	})
}

// seedDev carga el set de templates soportado con contenido mínimo para
// poder ejercitar el API sin base de datos. Los cuerpos sincronizables
// solo usan tokens con placeholder en el provider.
func seedDev(st *memory.Store) {
	for _, slug := range syncer.DefaultSlugs() {
		st.Templates.Put(&repository.EmailTemplate{
			Slug:             slug,
			Subject:          "[" + slug + "] Action required",
			HTMLBody:         `<p><a href="{{CONFIRMATION_URL}}">Continue</a></p>`,
			IsAuthCritical:   true,
			UnresolvedPolicy: tmpl.UnresolvedWarn,
		})
	}
	// Template local-only: se edita sin pasar por el sync.
	st.Templates.Put(&repository.EmailTemplate{
		Slug:                  "welcome",
		Subject:               "Welcome aboard",
		HTMLBody:              `<p>Hi {{NAME}},</p><p>Visit {{SITE_URL}} to get started.</p>`,
		UnresolvedPolicy:      tmpl.UnresolvedAllowlistFallback,
		AllowlistFallbackKeys: []string{"NAME"},
	})
}
