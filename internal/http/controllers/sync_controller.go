package controllers

import (
	"net/http"

	"github.com/dropDatabas3/mailplane/internal/http/dto"
	httperrors "github.com/dropDatabas3/mailplane/internal/http/errors"
	mw "github.com/dropDatabas3/mailplane/internal/http/middlewares"
	"github.com/dropDatabas3/mailplane/internal/observability/logger"
	"github.com/dropDatabas3/mailplane/internal/syncer"
)

// SyncController maneja el push de templates al identity provider.
type SyncController struct {
	orch *syncer.Orchestrator
}

// NewSyncController crea el controller de sync.
func NewSyncController(orch *syncer.Orchestrator) *SyncController {
	return &SyncController{orch: orch}
}

// Sync maneja POST /v1/admin/templates/sync.
// La idempotency key es obligatoria y viaja en el header Idempotency-Key.
func (c *SyncController) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SyncController.Sync"))

	var req dto.SyncRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		httperrors.WriteError(w, appErr)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("Idempotency-Key header is required"))
		return
	}
	actor := mw.GetActorID(ctx)
	if actor == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}

	status, outcome := c.orch.Sync(ctx, syncer.Request{
		ActorID:        actor,
		IdempotencyKey: key,
		Slugs:          req.Slugs,
		DryRun:         req.DryRun,
		RequestID:      mw.GetRequestID(ctx),
	})
	writeJSON(w, status, outcome)

	log.Debug("sync handled", logger.Status(status), logger.DryRun(req.DryRun))
}
