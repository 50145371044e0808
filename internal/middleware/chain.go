package middleware

import "net/http"

// Middleware wraps the whole handler tree.
type Middleware func(http.Handler) http.Handler

// Guard wraps a single route handler, e.g. RequireAuth or a rate limiter.
type Guard func(http.HandlerFunc) http.HandlerFunc

// Chain wraps h so the first middleware sees the request first.
//
//	handler := Chain(mux,
//	    WithRequestID,   // outermost
//	    RequestLogging,  // sees the request id
//	    AuthMiddleware(...),
//	)
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Protect applies guards to one route in the order given, so
// Protect(h, RequireAuth, limiter) rejects anonymous calls before counting them.
func Protect(h http.HandlerFunc, guards ...Guard) http.HandlerFunc {
	for i := len(guards) - 1; i >= 0; i-- {
		h = guards[i](h)
	}
	return h
}
