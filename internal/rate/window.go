package rate

import (
	"context"
	"time"

	"github.com/dropDatabas3/mailplane/internal/domain/repository"
)

// EventWindow es el sliding window persistido por actor para acciones de
// integración. Cuenta eventos append-only dentro de la ventana al momento
// de consultar; los eventos nunca se mutan ni se borran desde acá.
//
// A diferencia del RedisLimiter (edge HTTP), este presupuesto sobrevive
// reinicios y es compartido entre instancias vía el store.
type EventWindow struct {
	Events      repository.IntegrationEventRepository
	Integration string
	Action      string
	Max         int
	Window      time.Duration
}

// WindowResult reporta el estado del presupuesto para un actor.
type WindowResult struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration
}

// Check cuenta los intentos del actor dentro de la ventana, sin registrar
// nada. Se llama antes del claim para rechazar con 429 sin side effects.
func (w *EventWindow) Check(ctx context.Context, actorID string) (WindowResult, error) {
	since := time.Now().Add(-w.Window)
	n, err := w.Events.CountSince(ctx, w.Integration, w.Action, actorID, since)
	if err != nil {
		return WindowResult{}, err
	}
	res := WindowResult{Count: n, Allowed: n < w.Max}
	if res.Allowed {
		res.Remaining = w.Max - n - 1
	} else {
		// Sin timestamps individuales a mano, el peor caso es la ventana entera.
		res.RetryAfter = w.Window
	}
	return res, nil
}

// Record registra el intento actual. Los intentos rechazados por el
// límite igual se registran: cuentan como intento.
func (w *EventWindow) Record(ctx context.Context, actorID string) error {
	return w.Events.Record(ctx, w.Integration, w.Action, actorID)
}
