// Package health serves the gateway's liveness, readiness and health
// endpoints.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/bizgw/internal/observability"
)

// DefaultCheckTimeout bounds a readiness evaluation.
const DefaultCheckTimeout = 2 * time.Second

// Status represents the health status.
type Status string

// Status values.
const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded is operational with reduced capacity. It does not
	// fail readiness.
	StatusDegraded Status = "degraded"
	StatusDraining Status = "draining"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse is the body of GET /ready.
type ReadinessResponse struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Check is one dependency result.
type Check struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// CheckFunc evaluates one dependency.
type CheckFunc func(ctx context.Context) Check

// Checker tracks uptime, dependency checks and the draining flag.
type Checker struct {
	service   string
	version   string
	startTime time.Time
	timeout   time.Duration
	logger    observability.Logger

	mu     sync.RWMutex
	checks map[string]CheckFunc

	draining atomic.Bool
}

// NewChecker creates a Checker.
func NewChecker(service, version string, logger observability.Logger) *Checker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Checker{
		service:   service,
		version:   version,
		startTime: time.Now(),
		timeout:   DefaultCheckTimeout,
		logger:    logger,
		checks:    make(map[string]CheckFunc),
	}
}

// RegisterCheck adds or replaces a readiness check.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetDraining marks the gateway as shutting down; readiness fails from
// then on while liveness and health keep answering.
func (c *Checker) SetDraining(draining bool) {
	c.draining.Store(draining)
}

// Health is the static liveness payload.
func (c *Checker) Health() HealthResponse {
	return HealthResponse{
		Status:    StatusHealthy,
		Service:   c.service,
		Version:   c.version,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
}

// Readiness runs every check concurrently. Any unhealthy check, or
// draining, makes the gateway not ready.
func (c *Checker) Readiness(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{Status: StatusHealthy, Timestamp: time.Now().UTC()}
	if c.draining.Load() {
		resp.Status = StatusDraining
		return resp
	}

	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	funcs := make([]CheckFunc, len(names))
	sort.Strings(names)
	for i, name := range names {
		funcs[i] = c.checks[name]
	}
	c.mu.RUnlock()

	if len(names) == 0 {
		return resp
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make([]Check, len(names))
	var wg sync.WaitGroup
	for i, fn := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = fn(ctx)
		}()
	}
	wg.Wait()

	resp.Checks = make(map[string]Check, len(names))
	for i, name := range names {
		res := results[i]
		resp.Checks[name] = res
		switch res.Status {
		case StatusUnhealthy:
			resp.Status = StatusUnhealthy
			c.logger.Warn("readiness check failed",
				observability.String("check", name),
				observability.String("message", res.Message),
			)
		case StatusDegraded:
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}
	return resp
}

// RegisterRoutes mounts /health, /ready and /live.
func (c *Checker) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", c.HealthHandler)
	r.GET("/ready", c.ReadinessHandler)
	r.GET("/live", c.LivenessHandler)
}

// HealthHandler always answers 200.
func (c *Checker) HealthHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.Health())
}

// ReadinessHandler answers 503 when not ready.
func (c *Checker) ReadinessHandler(ctx *gin.Context) {
	resp := c.Readiness(ctx.Request.Context())
	status := http.StatusOK
	if resp.Status == StatusUnhealthy || resp.Status == StatusDraining {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, resp)
}

// LivenessHandler is a plain ping.
func (c *Checker) LivenessHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
