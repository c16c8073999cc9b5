package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus de mailplane. Viven en un package propio para
// evitar ciclos de import entre syncer, delivery y HTTP.

var (
	SyncAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailplane_sync_attempts_total",
		Help: "Intentos de sync por outcome terminal",
	}, []string{"outcome"})

	SyncReplays = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailplane_sync_replays_total",
		Help: "Responses servidas como replay idempotente",
	})

	SyncUpstreamLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mailplane_sync_upstream_latency_ms",
		Help:    "Latencia de la llamada al management API en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	RendersBlocked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailplane_renders_blocked_total",
		Help: "Renders en modo send bloqueados por tokens sin resolver",
	})

	RendersDegraded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mailplane_renders_degraded_total",
		Help: "Renders auth-critical que aplicaron fallback allowlisted",
	})

	EmailsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailplane_emails_sent_total",
		Help: "Emails enviados por slug",
	}, []string{"slug"})
)

// Register registra las métricas en el registry dado (default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		SyncAttempts, SyncReplays, SyncUpstreamLatency,
		RendersBlocked, RendersDegraded, EmailsSent,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
