package middlewares

import "net/http"

// WithBodyLimit corta bodies más grandes que max bytes. El decode JSON
// del controller es quien ve el error y responde 413.
func WithBodyLimit(max int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && max > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}
