package middlewares

import "context"

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxClaimsKey guarda las claims JWT parseadas
	ctxClaimsKey ctxKey = "claims"
	// ctxActorIDKey guarda el actor ID extraído del token
	ctxActorIDKey ctxKey = "actor_id"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// =================================================================================
// CONTEXT SETTERS (Internos, usados por middlewares)
// =================================================================================

// WithClaims inyecta claims en el contexto
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, claims)
}

// WithActorID inyecta el actor ID en el contexto
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ctxActorIDKey, actorID)
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// =================================================================================
// CONTEXT GETTERS (Públicos, usados por controllers)
// =================================================================================

// GetClaims obtiene las claims JWT del contexto.
// Retorna nil si no hay claims (token no validado o middleware no aplicado).
func GetClaims(ctx context.Context) map[string]any {
	if v := ctx.Value(ctxClaimsKey); v != nil {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetActorID obtiene el actor ID del contexto.
// Retorna cadena vacía si no hay actor.
func GetActorID(ctx context.Context) string {
	if v := ctx.Value(ctxActorIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
// Retorna cadena vacía si no hay request ID.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// =================================================================================
// CLAIM HELPERS
// =================================================================================

// ClaimString extrae un string de las claims.
func ClaimString(claims map[string]any, key string) string {
	if claims == nil {
		return ""
	}
	if v, ok := claims[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ClaimStringSlice extrae un slice de strings de las claims.
func ClaimStringSlice(claims map[string]any, key string) []string {
	if claims == nil {
		return nil
	}
	v, ok := claims[key]
	if !ok {
		return nil
	}
	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		result := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}
