// Package pg implementa los repositorios de mailplane sobre PostgreSQL.
// Usa pgxpool directamente; el mapeo de errores de driver a errores de
// dominio (repository.Err*) ocurre acá, nunca más arriba.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
)

// Options ajusta el pool de conexiones.
type Options struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// Store agrupa los repositorios PostgreSQL sobre un mismo pool.
type Store struct {
	pool *pgxpool.Pool

	Templates   repository.TemplateRepository
	Policies    repository.VariablePolicyRepository
	Idempotency repository.IdempotencyRepository
	Events      repository.IntegrationEventRepository
	Audit       repository.AuditRepository
}

// New abre el pool y construye los repositorios.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, repository.ErrNoDatabase
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolCfg.MinConns = opts.MinConns
	}
	if opts.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}

	return &Store{
		pool:        pool,
		Templates:   &templateRepo{pool: pool},
		Policies:    &policyRepo{pool: pool},
		Idempotency: &idempotencyRepo{pool: pool},
		Events:      &eventRepo{pool: pool},
		Audit:       &auditRepo{pool: pool},
	}, nil
}

// Close cierra el pool.
func (s *Store) Close() { s.pool.Close() }

// Ping verifica la conexión (health checks).
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// isUniqueViolation detecta violaciones de unique constraint (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
