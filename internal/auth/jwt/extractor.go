package jwt

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// BearerToken returns the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrMissingHeader
	}
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrInvalidPrefix
	}
	token := strings.TrimSpace(h[len(bearerPrefix):])
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}
