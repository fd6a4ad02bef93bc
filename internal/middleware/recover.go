package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
)

// Recover turns a handler panic into a 500 response. The panic and stack are
// logged under a correlation id that is also returned to the client.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				correlationID := uuid.NewString()
				logger.Error("handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"correlation_id", correlationID,
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
				)
				http.Error(w,
					fmt.Sprintf("internal server error (correlation_id: %s)", correlationID),
					http.StatusInternalServerError,
				)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
