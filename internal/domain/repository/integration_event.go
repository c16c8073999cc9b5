package repository

import (
	"context"
	"time"
)

// IntegrationEvent es un intento registrado contra una integración externa.
// Append-only: nunca se muta, y solo se excluye por ventana de tiempo al
// consultar. Alimenta el sliding window del rate limiter de sync.
type IntegrationEvent struct {
	ID          string
	Integration string
	Action      string
	ActorID     string
	CreatedAt   time.Time
}

// IntegrationEventRepository define el log de intentos por actor.
type IntegrationEventRepository interface {
	// Record agrega un intento. No falla por duplicados: cada intento
	// es un evento nuevo.
	Record(ctx context.Context, integration, action, actorID string) error

	// CountSince cuenta los intentos del actor desde el instante dado.
	CountSince(ctx context.Context, integration, action, actorID string, since time.Time) (int, error)
}
