package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

const maxRequestIDLength = 128

// RequestID keeps a well-formed inbound X-Request-ID or mints a UUID, then
// stores it on the context and echoes it on the response.
func RequestID() Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator is RequestID with a custom ID source.
func RequestIDWithGenerator(generate func() string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(util.HeaderRequestID)
			if !validRequestID(id) {
				id = generate()
				r.Header.Set(util.HeaderRequestID, id)
			}

			w.Header().Set(util.HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(observability.ContextWithRequestID(r.Context(), id)))
		})
	}
}

// validRequestID accepts short printable ASCII IDs only, so a client
// cannot smuggle control bytes into logs.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
