package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Recover turns a panic in any downstream handler into a JSON 500 in the
// same {"error","message"} shape every other API error uses.
//
// chi's Recoverer does the same job but answers with an empty body, which
// API clients cannot parse. Place Recover INSIDE Logger so the access log
// records the 500.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses this panic to abort a response on purpose.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("requestID", chimiddleware.GetReqID(r.Context())),
					slog.String("stack", string(debug.Stack())),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "internal_error",
					"message": "An internal error occurred",
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
