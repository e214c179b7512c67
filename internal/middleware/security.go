package middleware

import "net/http"

// DefaultSecurityHeaders are set on every response the gateway produces
// itself. Proxied responses keep whatever the backend sent.
var DefaultSecurityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Referrer-Policy":        "no-referrer",
	"Cache-Control":          "no-store",
}

// SecurityHeaders sets headers on the response before next runs. A nil
// map means DefaultSecurityHeaders; handlers may still override a value.
func SecurityHeaders(headers map[string]string) Middleware {
	if headers == nil {
		headers = DefaultSecurityHeaders
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range headers {
				h.Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
