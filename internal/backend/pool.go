package backend

import (
	"net"
	"net/http"
	"time"
)

// PoolConfig tunes the shared upstream connection pool.
type PoolConfig struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	DialTimeout           time.Duration
	ExpectContinueTimeout time.Duration
}

// DefaultPoolConfig returns the pool settings used in production.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		DialTimeout:           10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// NewTransport builds the pooled transport shared by every cluster.
// There is no ResponseHeaderTimeout: per-route deadlines come from the
// request context so long-running routes are not cut short.
func NewTransport(cfg PoolConfig) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
		// The proxy relays bodies as-is, including Content-Encoding.
		DisableCompression: true,
	}
}
