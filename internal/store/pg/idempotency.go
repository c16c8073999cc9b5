package pg

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
)

// idempotencyRepo implementa el ledger claim/finalize. El claim es un
// INSERT plano bajo unique(actor_id, idem_key): el 23505 del driver ES
// el mecanismo de exclusión entre requests concurrentes, no un error.
type idempotencyRepo struct {
	pool *pgxpool.Pool
}

const idempotencyColumns = `id, actor_id, idem_key, payload_hash,
	response_status, COALESCE(response_body, 'null'::jsonb), request_summary, created_at, finalized_at`

func scanIdempotency(row pgx.Row) (*repository.IdempotencyRecord, error) {
	var rec repository.IdempotencyRecord
	var body []byte
	err := row.Scan(&rec.ID, &rec.ActorID, &rec.Key, &rec.PayloadHash,
		&rec.ResponseStatus, &body, &rec.RequestSummary, &rec.CreatedAt, &rec.FinalizedAt)
	if err != nil {
		return nil, err
	}
	rec.ResponseBody = json.RawMessage(body)
	return &rec, nil
}

func (r *idempotencyRepo) Get(ctx context.Context, actorID, key string) (*repository.IdempotencyRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+idempotencyColumns+` FROM sync_idempotency
		  WHERE actor_id = $1 AND idem_key = $2`, actorID, key)
	rec, err := scanIdempotency(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *idempotencyRepo) Claim(ctx context.Context, input repository.ClaimIdempotencyInput) (*repository.IdempotencyRecord, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sync_idempotency (actor_id, idem_key, payload_hash, response_status, request_summary)
		 VALUES ($1, $2, $3, 0, $4)
		 RETURNING `+idempotencyColumns,
		input.ActorID, input.Key, input.PayloadHash, input.RequestSummary)
	rec, err := scanIdempotency(row)
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *idempotencyRepo) Finalize(ctx context.Context, actorID, key string, status int, body json.RawMessage) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sync_idempotency
		    SET response_status = $3, response_body = $4, finalized_at = NOW()
		  WHERE actor_id = $1 AND idem_key = $2 AND finalized_at IS NULL`,
		actorID, key, status, []byte(body))
	if err != nil {
		return err
	}
	// Cero filas: o no existe el claim o ya fue finalizado. Ambos son
	// bugs de protocolo del caller, no condiciones esperadas.
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}
