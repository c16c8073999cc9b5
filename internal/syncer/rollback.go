package syncer

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	"github.com/dropDatabas3/mailplane/internal/observability/logger"
)

// ErrRevertFailed señala la peor salida del rollback: el update local
// quedó aplicado, el sync falló y el revert también. Requiere
// intervención manual de un operador; nunca se degrada a un error común.
var ErrRevertFailed = errors.New("local update applied, sync failed, revert failed: manual intervention required")

// UpdateResult distingue los tres finales posibles del two-phase update.
type UpdateResult struct {
	// Applied: el contenido local quedó actualizado y el sync fue OK.
	Applied bool `json:"applied"`
	// Reverted: el sync falló y el contenido local volvió al snapshot.
	Reverted bool `json:"reverted"`
	// RevertFailed: el sync falló y el revert también. Estado divergente.
	RevertFailed bool `json:"revert_failed"`

	// SyncStatus y SyncOutcome reflejan el intento de sync subyacente.
	SyncStatus  int         `json:"sync_status"`
	SyncOutcome SyncOutcome `json:"sync_outcome"`
}

// RollbackCoordinator acopla "actualizar template local" con "sync al
// provider" y revierte lo local si el sync falla. Los templates que no
// son auth-critical no pasan por acá: se editan directo.
type RollbackCoordinator struct {
	Templates    repository.TemplateRepository
	Orchestrator *Orchestrator
}

// UpdateAndSync aplica el update local y dispara el sync del slug. Si el
// sync no devuelve 200, restaura el snapshot previo. Si el revert falla,
// devuelve ErrRevertFailed con RevertFailed=true: local y externo quedan
// divergentes y alguien tiene que enterarse.
func (c *RollbackCoordinator) UpdateAndSync(ctx context.Context, slug string, content repository.UpdateTemplateContent, syncReq Request) (UpdateResult, error) {
	log := logger.From(ctx).With(
		logger.Component("rollback"),
		logger.Slug(slug),
		logger.ActorID(syncReq.ActorID),
	)

	prev, err := c.Templates.GetBySlug(ctx, slug)
	if err != nil {
		return UpdateResult{}, err
	}
	snapshot := repository.UpdateTemplateContent{
		Subject:  prev.Subject,
		HTMLBody: prev.HTMLBody,
		TextBody: prev.TextBody,
	}

	if err := c.Templates.UpdateContent(ctx, slug, content); err != nil {
		return UpdateResult{}, err
	}

	syncReq.Slugs = []string{slug}
	status, outcome := c.Orchestrator.Sync(ctx, syncReq)
	res := UpdateResult{SyncStatus: status, SyncOutcome: outcome}

	if status == http.StatusOK {
		res.Applied = true
		return res, nil
	}

	log.Warn("sync failed after local update, reverting", logger.Status(status))
	if rerr := c.Templates.UpdateContent(ctx, slug, snapshot); rerr != nil {
		res.RevertFailed = true
		log.Error("revert failed, local and external config diverged", logger.Err(rerr))
		return res, ErrRevertFailed
	}
	res.Reverted = true
	return res, nil
}
