package middlewares

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/mailplane/internal/observability/logger"
)

// statusWriter captura el status code para el log de acceso.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// WithRequestID asigna un request ID (o respeta el del cliente), lo
// propaga por header y contexto, y deja un logger scoped en el contexto.
// También emite el access log al terminar el request.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get("X-Request-ID")
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", rid)

			log := logger.L().With(
				logger.RequestID(rid),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)
			ctx := setRequestID(r.Context(), rid)
			ctx = logger.ToContext(ctx, log)

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(ctx))

			log.Info("request",
				logger.Status(sw.status),
				logger.Duration(time.Since(start)),
				logger.ClientIP(clientIP(r)),
			)
		})
	}
}
