package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
)

type auditRepo struct {
	pool *pgxpool.Pool
}

func (r *auditRepo) Append(ctx context.Context, entry repository.SyncAuditEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sync_audit
		   (request_id, actor_id, slugs, dry_run, payload_hash, outcome, detail, patch_checksum)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
		entry.RequestID, entry.ActorID, entry.Slugs, entry.DryRun,
		entry.PayloadHash, entry.Outcome, entry.Detail, entry.PatchChecksum)
	return err
}
