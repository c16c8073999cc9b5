package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// ActorID crea un campo para el actor autenticado.
func ActorID(v string) zap.Field {
	return zap.String("actor_id", v)
}

// Slug crea un campo para el slug de un template.
func Slug(v string) zap.Field {
	return zap.String("slug", v)
}

// Slugs crea un campo para un conjunto de slugs.
func Slugs(v []string) zap.Field {
	return zap.Strings("slugs", v)
}

// IdemKey crea un campo para la idempotency key del request.
func IdemKey(v string) zap.Field {
	return zap.String("idempotency_key", v)
}

// DryRun crea un campo para el flag dry_run de un sync.
func DryRun(v bool) zap.Field {
	return zap.Bool("dry_run", v)
}

// Outcome crea un campo para el resultado terminal de una operación.
func Outcome(v string) zap.Field {
	return zap.String("outcome", v)
}

// Detail crea un campo para detalle advisory (ya scrubbed).
func Detail(v string) zap.Field {
	return zap.String("detail", v)
}

// Mode crea un campo para el modo de render.
func Mode(v string) zap.Field {
	return zap.String("mode", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (controller, service, repository).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}
