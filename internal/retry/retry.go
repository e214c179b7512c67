// Package retry runs startup calls against dependencies that may not be
// up yet, with exponential backoff and jitter.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Defaults used when a Config field is zero.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second
	DefaultJitterFactor   = 0.25
)

// Config bounds the retry loop. MaxRetries counts retries, so fn runs at
// most MaxRetries+1 times.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFactor   float64
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.JitterFactor <= 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
	return c
}

// Options tune a single Do call. Both fields are optional.
type Options struct {
	// ShouldRetry reports whether err is worth another attempt. Nil
	// retries every error.
	ShouldRetry func(err error) bool
	// OnRetry runs before sleeping for backoff.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// Do calls fn until it succeeds, returns a permanent error, the retries
// are used up or ctx ends. It returns fn's last error, or ctx.Err().
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error, opts Options) error {
	cfg = cfg.withDefaults()

	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}

		backoff := Backoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff, cfg.JitterFactor)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Backoff is initial*2^attempt plus up to jitter of itself, capped at max.
func Backoff(attempt int, initial, maxBackoff time.Duration, jitter float64) time.Duration {
	d := float64(initial) * math.Pow(2, float64(attempt))
	//nolint:gosec // jitter is not security sensitive
	d += d * jitter * rand.Float64()
	if d > float64(maxBackoff) {
		d = float64(maxBackoff)
	}
	return time.Duration(d)
}
