package jwt

import (
	"context"
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Validator verifies tokens minted with the shared secret.
type Validator struct {
	cfg    Config
	parser *gojwt.Parser
}

// NewValidator creates a Validator. Expiry is checked with zero leeway.
func NewValidator(cfg Config, opts ...Option) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	parser := gojwt.NewParser(
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(cfg.Issuer),
		gojwt.WithAudience(cfg.Audience),
		gojwt.WithExpirationRequired(),
		gojwt.WithLeeway(0),
		gojwt.WithTimeFunc(o.now),
	)
	return &Validator{cfg: cfg, parser: parser}, nil
}

// Validate verifies token and returns its claims. Errors are
// *ValidationError wrapping one of the package sentinels.
func (v *Validator) Validate(_ context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, &ValidationError{Cause: ErrEmptyToken}
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return v.cfg.Secret, nil
	})
	if err != nil {
		return nil, &ValidationError{Cause: classify(err), Detail: err}
	}
	return claims, nil
}

// classify picks the sentinel for a parser error. golang-jwt joins several
// errors when more than one check fails; structural and signature problems
// take precedence over claim checks.
func classify(err error) error {
	switch {
	case errors.Is(err, gojwt.ErrTokenMalformed),
		errors.Is(err, gojwt.ErrTokenRequiredClaimMissing):
		return ErrTokenMalformed
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid),
		errors.Is(err, gojwt.ErrTokenUnverifiable):
		return ErrTokenInvalidSignature
	case errors.Is(err, gojwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, gojwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	case errors.Is(err, gojwt.ErrTokenInvalidIssuer):
		return ErrTokenInvalidIssuer
	case errors.Is(err, gojwt.ErrTokenInvalidAudience):
		return ErrTokenInvalidAudience
	default:
		return ErrTokenMalformed
	}
}

// ExpiresAt is a convenience for callers that only have the claims.
func ExpiresAt(c *Claims) time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
