package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"tenderplan/internal/httputil"
)

// Recovery turns a panicking handler into a 500. http.ErrAbortHandler is
// re-raised so net/http can drop the connection quietly, which is how an
// aborted SSE stream ends.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				logger.Error("handler panic",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
