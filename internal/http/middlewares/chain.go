package middlewares

import "net/http"

// Middleware envuelve un http.Handler con comportamiento transversal.
type Middleware func(http.Handler) http.Handler

// Chain compone los middlewares sobre h. El primero de la lista queda
// como capa más externa: intercepta el request antes que el resto y es
// el último en ver la respuesta.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
