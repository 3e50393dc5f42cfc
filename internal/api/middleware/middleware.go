// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Logger logs each request's method, path, status, and duration. Requests
// carry the chi request ID set upstream, echoed back as X-Request-Id.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// RequestIDHeader writes the chi-assigned (or caller-supplied) request ID
// onto the response as X-Request-Id. Must run after middleware.RequestID
// has populated the context.
func RequestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-Id", id)
		}
		next.ServeHTTP(w, r)
	})
}

// Apply sets up all middleware for the HTTP server.
func Apply(handler http.Handler) http.Handler {
	// Echo the request ID back on the response; wrapped inside RequestID so
	// the ID is already in context by the time this runs.
	handler = RequestIDHeader(handler)

	// Request ID for tracing
	handler = middleware.RequestID(handler)

	// Real IP from proxy headers
	handler = middleware.RealIP(handler)

	// Structured logging
	handler = Logger(handler)

	// Panic recovery
	handler = Recoverer(handler)

	// Request timeout
	handler = middleware.Timeout(30 * time.Second)(handler)

	// Compression
	handler = middleware.Compress(5)(handler)

	return handler
}
