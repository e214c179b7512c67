package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// Recovery turns a handler panic into a 500. http.ErrAbortHandler is
// re-raised so net/http can drop the connection, which is how the proxy
// aborts a response that failed mid-stream.
func Recovery(logger observability.Logger) Middleware {
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

				logger.WithContext(r.Context()).Error("panic recovered",
					observability.String("method", r.Method),
					observability.String("path", r.URL.Path),
					observability.Any("panic", rec),
					observability.String("stack", string(debug.Stack())),
				)
				util.WriteError(w, http.StatusInternalServerError, util.CodeInternal, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
