package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// DefaultClientTTL is how long an idle client's bucket is kept.
const DefaultClientTTL = 10 * time.Minute

type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	name    string
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	logger  observability.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	clients map[string]*clientEntry

	stopOnce sync.Once
	stopCh   chan struct{}
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterLogger sets the logger.
func WithRateLimiterLogger(logger observability.Logger) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.logger = logger
	}
}

// WithRateLimiterMetrics counts rejected requests.
func WithRateLimiterMetrics(m *observability.Metrics) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.metrics = m
	}
}

// WithClientTTL overrides DefaultClientTTL.
func WithClientTTL(ttl time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) {
		if ttl > 0 {
			rl.ttl = ttl
		}
	}
}

// NewRateLimiter creates a per-client limiter named name (the metrics
// label) allowing rps requests per second with the given burst.
func NewRateLimiter(name string, rps float64, burst int, opts ...RateLimiterOption) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		name:    name,
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     DefaultClientTTL,
		now:     time.Now,
		logger:  observability.NopLogger(),
		clients: make(map[string]*clientEntry),
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Allow reports whether client may proceed now.
func (rl *RateLimiter) Allow(client string) bool {
	now := rl.now()

	rl.mu.Lock()
	e, ok := rl.clients[client]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[client] = e
	}
	e.lastAccess = now
	lim := e.limiter
	rl.mu.Unlock()

	return lim.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Cleanup drops clients idle for longer than the TTL.
func (rl *RateLimiter) Cleanup() {
	cutoff := rl.now().Add(-rl.ttl)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, e := range rl.clients {
		if e.lastAccess.Before(cutoff) {
			delete(rl.clients, k)
		}
	}
}

// StartCleanup runs Cleanup every interval until Stop.
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-rl.stopCh:
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// RateLimit rejects requests over the client's budget with 429.
func RateLimit(rl *RateLimiter) Middleware {
	retryAfter := "1"
	if rl.limit > 0 {
		if secs := int(1/float64(rl.limit) + 0.5); secs > 1 {
			retryAfter = strconv.Itoa(secs)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := util.ClientIP(r)
			if rl.Allow(client) {
				next.ServeHTTP(w, r)
				return
			}

			if rl.metrics != nil {
				rl.metrics.RecordRateLimitHit(rl.name)
			}
			rl.logger.WithContext(r.Context()).Warn("rate limit exceeded",
				observability.String("limiter", rl.name),
				observability.String("client_ip", client),
			)
			w.Header().Set("Retry-After", retryAfter)
			util.WriteError(w, http.StatusTooManyRequests, util.CodeRateLimited, "too many requests")
		})
	}
}
