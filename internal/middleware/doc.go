// Package middleware holds the net/http middleware wrapped around every
// gateway request: panic recovery, request IDs, access logging, CORS and
// per-client rate limiting.
//
// Each middleware has the shape func(http.Handler) http.Handler. Chain
// composes them; Gin adapts one for use on a single gin route.
package middleware
