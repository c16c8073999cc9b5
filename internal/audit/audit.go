// Package audit escribe el audit trail de syncs: cada intento terminal
// (éxito o falla) queda en el store y se espeja en el logger estructurado.
package audit

import (
	"context"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
	"github.com/dropDatabas3/mailplane/internal/observability/logger"
)

// Entry es una entrada de auditoría aún sin scrub.
type Entry struct {
	RequestID     string
	ActorID       string
	Slugs         []string
	DryRun        bool
	PayloadHash   string
	Outcome       string
	Detail        string
	PatchChecksum string
}

// Logger persiste entradas scrubbed y las espeja en zap. Si el store de
// auditoría falla, el fallo se loguea pero no voltea la operación: el
// outcome ya quedó en el ledger de idempotencia.
type Logger struct {
	Repo repository.AuditRepository
}

// Record scrubbea y persiste la entrada.
func (a *Logger) Record(ctx context.Context, e Entry) {
	log := logger.From(ctx).With(
		logger.Component("audit"),
		logger.ActorID(e.ActorID),
		logger.RequestID(e.RequestID),
	)

	detail := Scrub(e.Detail)
	log.Info("sync audit",
		logger.Slugs(e.Slugs),
		logger.DryRun(e.DryRun),
		logger.Outcome(e.Outcome),
		logger.Detail(detail),
	)

	if a.Repo == nil {
		return
	}
	err := a.Repo.Append(ctx, repository.SyncAuditEntry{
		RequestID:     e.RequestID,
		ActorID:       e.ActorID,
		Slugs:         e.Slugs,
		DryRun:        e.DryRun,
		PayloadHash:   e.PayloadHash,
		Outcome:       e.Outcome,
		Detail:        detail,
		PatchChecksum: e.PatchChecksum,
	})
	if err != nil {
		log.Error("audit append failed", logger.Err(err))
	}
}
