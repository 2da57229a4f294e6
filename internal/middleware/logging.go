// Package middleware contains HTTP middleware functions.
//
// WHAT IS MIDDLEWARE?
// Middleware is a function that wraps an HTTP handler to add cross-cutting behaviour
// (logging, auth, CORS, etc.) without modifying the handler itself.
//
// The pattern is:
//
//	func MyMiddleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // Do something BEFORE the handler runs
//	        next.ServeHTTP(w, r)  // Call the actual handler
//	        // Do something AFTER the handler runs
//	    })
//	}
//
// This is the "decorator pattern": we wrap the real handler with extra behaviour.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
// Go's http.ResponseWriter doesn't expose the status code after WriteHeader is called,
// so we wrap it to track it ourselves. This is a common Go pattern.
type responseWriter struct {
	http.ResponseWriter       // Embedding: this struct "inherits" all methods
	statusCode          int   // Our addition: track the status code
	written             int64 // Track bytes written
	wroteHeader         bool  // Headers already sent
}

// WriteHeader captures the status code before delegating to the embedded ResponseWriter.
// By defining this method, we "override" the embedded ResponseWriter's WriteHeader.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures bytes written and delegates to the embedded ResponseWriter.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
// (flushing, deadlines).
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger returns an HTTP middleware that logs each request using Go's slog package.
//
// slog (structured logging) was added in Go 1.21. It produces structured log output
// that's easy to parse and search, unlike fmt.Println.
//
// Each log line includes: method, path, status code, duration, bytes written
// and the request id set by chi's RequestID middleware (when present), so a
// slow /ask can be matched with the pipeline logs it produced.
//
// 5xx responses log at Error level; everything else at Info.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Record when the request started
			start := time.Now()

			// Wrap the ResponseWriter so we can capture status code and bytes
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // Default if WriteHeader is never called
			}

			// Call the next handler in the chain
			next.ServeHTTP(wrapped, r)

			level := slog.LevelInfo
			if wrapped.statusCode >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			// Log the completed request with structured fields
			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("requestID", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
