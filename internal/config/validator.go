package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ValidationError is a single problem at a config path.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "no validation errors"
	case 1:
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// Prefix errors.
var (
	ErrPrefixEmpty       = errors.New("prefix is required")
	ErrPrefixNoSlash     = errors.New("prefix must start with '/'")
	ErrPrefixTrailing    = errors.New("prefix must not end with '/'")
	ErrPrefixInvalidChar = errors.New("prefix must not contain '?', '#', whitespace or empty segments")
)

// ValidatePrefix checks that prefix is a clean absolute path such as
// /api/identity.
func ValidatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return ErrPrefixEmpty
	case !strings.HasPrefix(prefix, "/"):
		return ErrPrefixNoSlash
	case prefix != "/" && strings.HasSuffix(prefix, "/"):
		return ErrPrefixTrailing
	case strings.ContainsAny(prefix, "?# \t\r\n"), strings.Contains(prefix, "//"):
		return ErrPrefixInvalidChar
	}
	return nil
}

// ValidateConfig checks cfg and returns ValidationErrors listing every
// problem, or nil.
func ValidateConfig(cfg *GatewayConfig) error {
	v := &validator{}
	if cfg == nil {
		v.add("", "configuration is nil")
		return v.errs
	}

	v.validateServer(&cfg.Server)
	v.validateJWT(&cfg.JWT)
	v.validateClusters(cfg.Clusters)
	v.validateRoutes(cfg.Routes, cfg.Clusters)
	v.validateAuth(&cfg.Auth, cfg.Clusters)
	v.validateDocs(&cfg.Docs)
	v.validateTracing(&cfg.Observability.Tracing)

	if len(v.errs) > 0 {
		return v.errs
	}
	return nil
}

type validator struct {
	errs ValidationErrors
}

func (v *validator) add(path, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) validateServer(s *ServerConfig) {
	if s.Addr == "" {
		v.add("server.addr", "listen address is required")
	}
	if s.ShutdownTimeout < 0 {
		v.add("server.shutdownTimeout", "must not be negative")
	}
}

func (v *validator) validateJWT(j *JWTConfig) {
	if j.Issuer == "" {
		v.add("jwt.issuer", "issuer is required")
	}
	if j.Audience == "" {
		v.add("jwt.audience", "audience is required")
	}
	if j.TTL <= 0 {
		v.add("jwt.ttl", "must be positive")
	}

	fromVault := j.Vault != nil && j.Vault.Enabled
	if !fromVault && j.Secret == "" {
		v.add("jwt.secret", "signing secret is required (set JWT_SECRET or enable vault)")
	}
	if !fromVault && j.Secret != "" && len(j.Secret) < 32 {
		v.add("jwt.secret", "signing secret must be at least 32 bytes")
	}
	if fromVault {
		if j.Vault.Address == "" {
			v.add("jwt.vault.address", "address is required when vault is enabled")
		}
		if j.Vault.Path == "" {
			v.add("jwt.vault.path", "path is required when vault is enabled")
		}
	}
}

func (v *validator) validateClusters(clusters map[string]ClusterConfig) {
	if len(clusters) == 0 {
		v.add("clusters", "at least one cluster is required")
	}
	for name, c := range clusters {
		path := "clusters." + name
		if len(c.Addresses) == 0 {
			v.add(path+".addresses", "at least one address is required")
		}
		for i, addr := range c.Addresses {
			u, err := url.Parse(addr)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				v.add(fmt.Sprintf("%s.addresses[%d]", path, i), "%q is not an absolute http(s) URL", addr)
			}
		}
		if cb := c.CircuitBreaker; cb != nil && cb.Enabled {
			if cb.FailureThreshold <= 0 {
				v.add(path+".circuitBreaker.failureThreshold", "must be positive")
			}
			if cb.Timeout <= 0 {
				v.add(path+".circuitBreaker.timeout", "must be positive")
			}
		}
	}
}

// validateRoutes enforces the prefix-disjoint table: each prefix appears
// once (compared case-insensitively, as matching is), so longest-prefix
// matching never has to break a tie.
func (v *validator) validateRoutes(routes []RouteConfig, clusters map[string]ClusterConfig) {
	if len(routes) == 0 {
		v.add("routes", "at least one route is required")
	}

	names := make(map[string]int, len(routes))
	prefixes := make(map[string]int, len(routes))
	for i, r := range routes {
		path := fmt.Sprintf("routes[%d]", i)

		if r.Name == "" {
			v.add(path+".name", "name is required")
		} else if j, dup := names[r.Name]; dup {
			v.add(path+".name", "duplicate route name %q (also routes[%d])", r.Name, j)
		} else {
			names[r.Name] = i
		}

		if err := ValidatePrefix(r.Prefix); err != nil {
			v.add(path+".prefix", "%q: %v", r.Prefix, err)
		} else if j, dup := prefixes[strings.ToLower(r.Prefix)]; dup {
			v.add(path+".prefix", "prefix %q overlaps routes[%d]", r.Prefix, j)
		} else {
			prefixes[strings.ToLower(r.Prefix)] = i
		}

		if r.RewritePrefix != "" {
			if err := ValidatePrefix(r.RewritePrefix); err != nil {
				v.add(path+".rewritePrefix", "%q: %v", r.RewritePrefix, err)
			}
		}

		if r.Cluster == "" {
			v.add(path+".cluster", "cluster is required")
		} else if _, ok := clusters[r.Cluster]; !ok {
			v.add(path+".cluster", "unknown cluster %q", r.Cluster)
		}

		if r.Timeout < 0 {
			v.add(path+".timeout", "must not be negative")
		}
	}
}

func (v *validator) validateAuth(a *AuthConfig, clusters map[string]ClusterConfig) {
	if a.IdentityCluster != "" {
		if _, ok := clusters[a.IdentityCluster]; !ok {
			v.add("auth.identityCluster", "unknown cluster %q", a.IdentityCluster)
		}
	}
	if a.IdentityCluster == "" && len(a.StaticUsers) == 0 {
		v.add("auth", "either identityCluster or staticUsers must be configured")
	}
	for i, u := range a.StaticUsers {
		path := fmt.Sprintf("auth.staticUsers[%d]", i)
		if u.Email == "" {
			v.add(path+".email", "email is required")
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			v.add(path+".passwordHash", "not a bcrypt hash: %v", err)
		}
	}
	if rl := a.LoginRateLimit; rl.Enabled && (rl.RequestsPerSecond <= 0 || rl.Burst <= 0) {
		v.add("auth.loginRateLimit", "requestsPerSecond and burst must be positive")
	}
}

func (v *validator) validateDocs(d *DocsConfig) {
	if !strings.HasPrefix(d.Path, "/") {
		v.add("docs.path", "must start with '/'")
	}
	if !d.Cache.Enabled {
		return
	}
	switch d.Cache.Type {
	case CacheTypeMemory:
	case CacheTypeRedis:
		if d.Cache.RedisURL == "" {
			v.add("docs.cache.redisURL", "required for redis cache")
		}
	default:
		v.add("docs.cache.type", "unknown cache type %q", d.Cache.Type)
	}
	if d.Cache.TTL <= 0 {
		v.add("docs.cache.ttl", "must be positive")
	}
}

func (v *validator) validateTracing(t *TracingConfig) {
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		v.add("observability.tracing.samplingRate", "must be between 0 and 1")
	}
}
