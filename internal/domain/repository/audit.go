package repository

import (
	"context"
	"time"
)

// SyncAuditEntry es una entrada del audit log de syncs. El detalle ya
// llega scrubbed (sin bearer tokens ni material secreto); el repositorio
// persiste tal cual.
type SyncAuditEntry struct {
	ID            string
	RequestID     string
	ActorID       string
	Slugs         []string
	DryRun        bool
	PayloadHash   string
	Outcome       string
	Detail        string
	PatchChecksum string
	CreatedAt     time.Time
}

// AuditRepository persiste entradas de auditoría de sync.
type AuditRepository interface {
	Append(ctx context.Context, entry SyncAuditEntry) error
}
