package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior. The server
// applies the chain around the whole handler, so REST routes and the SSE
// stream share it.
type Middleware func(http.Handler) http.Handler

// Chain composes middleware. The first in the list is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// writeError writes an error envelope. Middleware cannot use gin helpers
// because it runs outside the engine.
func writeError(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
