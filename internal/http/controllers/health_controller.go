package controllers

import (
	"context"
	"net/http"
	"time"
)

// Pinger es lo mínimo que health necesita del storage.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController expone los endpoints de liveness/readiness.
type HealthController struct {
	store Pinger
}

// NewHealthController crea el controller de health.
func NewHealthController(store Pinger) *HealthController {
	return &HealthController{store: store}
}

// Healthz maneja GET /healthz (liveness).
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz (readiness). Falla si el storage no responde.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	if c.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := c.store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"store":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
