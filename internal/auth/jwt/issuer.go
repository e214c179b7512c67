package jwt

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer mints HS256 tokens.
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer creates an Issuer. cfg.TTL must be positive.
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	o := applyOptions(opts)
	return &Issuer{cfg: cfg, now: o.now}, nil
}

// Issue stamps identity with issuer, audience, iat, exp and a fresh jti,
// then signs it. The returned Claims are exactly what the token carries.
func (i *Issuer) Issue(identity Claims) (string, *Claims, error) {
	now := i.now().Truncate(time.Second)

	claims := identity
	claims.RegisteredClaims = gojwt.RegisteredClaims{
		Issuer:    i.cfg.Issuer,
		Subject:   identity.Subject,
		Audience:  gojwt.ClaimStrings{i.cfg.Audience},
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(i.cfg.TTL)),
		ID:        uuid.NewString(),
	}
	if len(identity.Roles) > 0 {
		claims.Roles = append(Roles(nil), identity.Roles...)
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &claims).SignedString(i.cfg.Secret)
	if err != nil {
		return "", nil, &SigningError{Message: "failed to sign token", Cause: err}
	}
	return signed, &claims, nil
}

// TTL returns the lifetime of minted tokens.
func (i *Issuer) TTL() time.Duration {
	return i.cfg.TTL
}
