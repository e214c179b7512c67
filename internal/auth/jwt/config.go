package jwt

import (
	"fmt"
	"time"
)

// MinSecretLength is the shortest HS256 secret accepted.
const MinSecretLength = 32

// Config holds the shared settings of Issuer and Validator.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	// TTL is the lifetime of minted tokens. Validator ignores it.
	TTL time.Duration
}

// Validate checks the settings both sides rely on.
func (c Config) Validate() error {
	if len(c.Secret) < MinSecretLength {
		return fmt.Errorf("%w: secret must be at least %d bytes", ErrInvalidKey, MinSecretLength)
	}
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	if c.Audience == "" {
		return fmt.Errorf("audience is required")
	}
	return nil
}

// Option configures an Issuer or a Validator.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
