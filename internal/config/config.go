package config

import (
	"strings"
	"time"
)

// Default timeouts.
const (
	DefaultRouteTimeout    = 30 * time.Second
	DefaultIdentityTimeout = 30 * time.Second
	DefaultDocsTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultTokenTTL        = 8 * time.Hour
)

// GatewayConfig is the root of the gateway configuration.
type GatewayConfig struct {
	Server        ServerConfig             `yaml:"server" json:"server"`
	CORS          CORSConfig               `yaml:"cors" json:"cors"`
	JWT           JWTConfig                `yaml:"jwt" json:"jwt"`
	Auth          AuthConfig               `yaml:"auth" json:"auth"`
	Clusters      map[string]ClusterConfig `yaml:"clusters" json:"clusters"`
	Routes        []RouteConfig            `yaml:"routes" json:"routes"`
	Docs          DocsConfig               `yaml:"docs" json:"docs"`
	Observability ObservabilityConfig      `yaml:"observability" json:"observability"`
}

// ServerConfig configures the inbound listener.
type ServerConfig struct {
	Addr              string   `yaml:"addr" json:"addr"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`
	IdleTimeout       Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout   Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// CORSConfig holds the allowed origins as a comma-separated list, the
// form CORS_ALLOWED_ORIGINS is given in.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowedOrigins" json:"allowedOrigins"`
}

// Origins splits AllowedOrigins and drops empty entries.
func (c CORSConfig) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// JWTConfig configures token minting and validation.
type JWTConfig struct {
	Issuer   string       `yaml:"issuer" json:"issuer"`
	Audience string       `yaml:"audience" json:"audience"`
	Secret   string       `yaml:"secret" json:"-"`
	TTL      Duration     `yaml:"ttl" json:"ttl"`
	Vault    *VaultConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// VaultConfig points at a KV v2 secret holding the signing key.
type VaultConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Address string   `yaml:"address" json:"address"`
	Token   string   `yaml:"token" json:"-"`
	Mount   string   `yaml:"mount" json:"mount"`
	Path    string   `yaml:"path" json:"path"`
	Key     string   `yaml:"key" json:"key"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// AuthConfig configures how login credentials are checked.
type AuthConfig struct {
	// IdentityCluster is the cluster asked to verify credentials. Empty
	// disables the remote check.
	IdentityCluster string          `yaml:"identityCluster" json:"identityCluster"`
	VerifyPath      string          `yaml:"verifyPath" json:"verifyPath"`
	Timeout         Duration        `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	StaticUsers     []StaticUser    `yaml:"staticUsers,omitempty" json:"staticUsers,omitempty"`
	LoginRateLimit  RateLimitConfig `yaml:"loginRateLimit" json:"loginRateLimit"`
}

// StaticUser is a bootstrap account checked locally with bcrypt.
type StaticUser struct {
	Email        string   `yaml:"email" json:"email"`
	PasswordHash string   `yaml:"passwordHash" json:"-"`
	Subject      string   `yaml:"subject" json:"subject"`
	UserID       string   `yaml:"userId" json:"userId"`
	FirstName    string   `yaml:"firstName" json:"firstName"`
	LastName     string   `yaml:"lastName" json:"lastName"`
	Roles        []string `yaml:"roles" json:"roles"`
	SbuID        string   `yaml:"sbuId" json:"sbuId"`
	TeamID       string   `yaml:"teamId" json:"teamId"`
}

// RateLimitConfig is a token bucket.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// ClusterConfig is a named backend target.
type ClusterConfig struct {
	// Addresses are base URLs; requests are spread round-robin.
	Addresses      []string              `yaml:"addresses" json:"addresses"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// CircuitBreakerConfig configures the per-cluster breaker.
type CircuitBreakerConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	FailureThreshold int      `yaml:"failureThreshold" json:"failureThreshold"`
	Timeout          Duration `yaml:"timeout" json:"timeout"`
	HalfOpenRequests int      `yaml:"halfOpenRequests" json:"halfOpenRequests"`
}

// RouteConfig maps a path prefix to a cluster.
type RouteConfig struct {
	Name        string `yaml:"name" json:"name"`
	Prefix      string `yaml:"prefix" json:"prefix"`
	Cluster     string `yaml:"cluster" json:"cluster"`
	RequireAuth bool   `yaml:"requireAuth" json:"requireAuth"`
	// Policy is a CEL expression over the caller's principal; the request is
	// forbidden when it evaluates to false.
	Policy string `yaml:"policy,omitempty" json:"policy,omitempty"`
	// RewritePrefix replaces Prefix before forwarding when set.
	RewritePrefix string `yaml:"rewritePrefix,omitempty" json:"rewritePrefix,omitempty"`
	// Timeout bounds the wait for the backend's response headers, not the
	// streaming of the body.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// DocsConfig configures the documentation aggregator.
type DocsConfig struct {
	Path    string      `yaml:"path" json:"path"`
	Timeout Duration    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Cache   CacheConfig `yaml:"cache" json:"cache"`
}

// CacheConfig configures the aggregated document cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Type is "memory" or "redis".
	Type     string   `yaml:"type" json:"type"`
	TTL      Duration `yaml:"ttl" json:"ttl"`
	RedisURL string   `yaml:"redisURL,omitempty" json:"-"`
}

// Cache backend types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"logLevel" json:"logLevel"`
	LogFormat string        `yaml:"logFormat" json:"logFormat"`
	Metrics   MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing   TracingConfig `yaml:"tracing" json:"tracing"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
}

// ApplyDefaults fills zero values that have a sensible default.
func (c *GatewayConfig) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = Duration(10 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(120 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = Duration(DefaultTokenTTL)
	}
	if c.Auth.VerifyPath == "" {
		c.Auth.VerifyPath = "/api/auth/verify-credentials"
	}
	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = Duration(DefaultIdentityTimeout)
	}
	for i := range c.Routes {
		if c.Routes[i].Timeout == 0 {
			c.Routes[i].Timeout = Duration(DefaultRouteTimeout)
		}
	}
	if c.Docs.Path == "" {
		c.Docs.Path = "/swagger/v1/swagger.json"
	}
	if c.Docs.Timeout == 0 {
		c.Docs.Timeout = Duration(DefaultDocsTimeout)
	}
	if c.Docs.Cache.Type == "" {
		c.Docs.Cache.Type = CacheTypeMemory
	}
	if c.Docs.Cache.TTL == 0 {
		c.Docs.Cache.TTL = Duration(5 * time.Minute)
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = "bizgw"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
