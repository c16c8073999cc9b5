package repository

import (
	"context"
	"encoding/json"
	"time"
)

// IdempotencyRecord es el ledger claim/replay de un intento de sync.
// Se crea una sola vez como sentinel in-progress (ResponseStatus == 0,
// FinalizedAt == nil) y se finaliza exactamente una vez. El PayloadHash
// de un (actor, key) nunca cambia después del claim.
type IdempotencyRecord struct {
	ID             string
	ActorID        string
	Key            string
	PayloadHash    string
	ResponseStatus int
	ResponseBody   json.RawMessage
	RequestSummary string
	CreatedAt      time.Time
	FinalizedAt    *time.Time
}

// InProgress indica si el registro sigue en estado sentinel.
func (r *IdempotencyRecord) InProgress() bool {
	return r.FinalizedAt == nil
}

// ClaimIdempotencyInput son los datos del claim inicial.
type ClaimIdempotencyInput struct {
	ActorID        string
	Key            string
	PayloadHash    string
	RequestSummary string
}

// IdempotencyRepository es el único primitivo de coordinación entre
// requests concurrentes: el claim es un insert bajo unique(actor, key).
type IdempotencyRepository interface {
	// Get retorna ErrNotFound si no existe registro para (actor, key).
	Get(ctx context.Context, actorID, key string) (*IdempotencyRecord, error)

	// Claim inserta el sentinel in-progress. Retorna ErrConflict si otro
	// request ya reclamó la misma (actor, key); el caller debe re-leer.
	Claim(ctx context.Context, input ClaimIdempotencyInput) (*IdempotencyRecord, error)

	// Finalize escribe el outcome terminal una única vez. Retorna
	// ErrConflict si el registro ya fue finalizado.
	Finalize(ctx context.Context, actorID, key string, status int, body json.RawMessage) error
}
