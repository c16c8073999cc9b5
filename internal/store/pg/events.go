package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// eventRepo es el log append-only de intentos contra integraciones.
// Nunca hay UPDATE ni DELETE: la ventana se aplica en el WHERE.
type eventRepo struct {
	pool *pgxpool.Pool
}

func (r *eventRepo) Record(ctx context.Context, integration, action, actorID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO integration_event (integration, action, actor_id) VALUES ($1, $2, $3)`,
		integration, action, actorID)
	return err
}

func (r *eventRepo) CountSince(ctx context.Context, integration, action, actorID string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM integration_event
		  WHERE integration = $1 AND action = $2 AND actor_id = $3 AND created_at >= $4`,
		integration, action, actorID, since).Scan(&n)
	return n, err
}
