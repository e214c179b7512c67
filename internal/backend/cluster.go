package backend

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/observability"
)

// ErrUnknownCluster is returned by Registry.Lookup.
var ErrUnknownCluster = errors.New("unknown cluster")

// Cluster is a named upstream with one or more base URLs.
type Cluster struct {
	name      string
	targets   []*url.URL
	counter   atomic.Uint64
	transport http.RoundTripper
	breaker   *breakerTransport
}

// Name returns the cluster name.
func (c *Cluster) Name() string {
	return c.name
}

// Next returns the next base URL in round-robin order. The returned URL
// is shared; callers must not modify it.
func (c *Cluster) Next() *url.URL {
	if len(c.targets) == 1 {
		return c.targets[0]
	}
	idx := c.counter.Add(1) - 1
	return c.targets[idx%uint64(len(c.targets))]
}

// Targets returns the cluster's base URLs.
func (c *Cluster) Targets() []*url.URL {
	out := make([]*url.URL, len(c.targets))
	copy(out, c.targets)
	return out
}

// Transport returns the round tripper for this cluster. It is the shared
// pooled transport, wrapped in the circuit breaker when one is configured.
func (c *Cluster) Transport() http.RoundTripper {
	return c.transport
}

// BreakerState reports the breaker state, or closed when the cluster has
// no breaker.
func (c *Cluster) BreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.state()
}

// Registry holds every configured cluster. It is immutable after
// construction.
type Registry struct {
	clusters map[string]*Cluster
	pool     *http.Transport
	logger   observability.Logger
	onState  StateFunc
	poolCfg  PoolConfig
	base     http.RoundTripper
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for breaker transitions.
func WithLogger(logger observability.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics publishes breaker state on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) {
		if m != nil {
			r.onState = m.SetCircuitBreakerState
		}
	}
}

// WithStateFunc sets a breaker transition observer.
func WithStateFunc(fn StateFunc) Option {
	return func(r *Registry) {
		r.onState = fn
	}
}

// WithPoolConfig overrides DefaultPoolConfig.
func WithPoolConfig(cfg PoolConfig) Option {
	return func(r *Registry) {
		r.poolCfg = cfg
	}
}

// WithBaseTransport replaces the pooled transport, mainly for tests.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(r *Registry) {
		r.base = rt
	}
}

// NewRegistry builds clusters from configuration. Every address must be an
// absolute http(s) URL.
func NewRegistry(clusters map[string]config.ClusterConfig, opts ...Option) (*Registry, error) {
	r := &Registry{
		clusters: make(map[string]*Cluster, len(clusters)),
		logger:   observability.NopLogger(),
		poolCfg:  DefaultPoolConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.base == nil {
		r.pool = NewTransport(r.poolCfg)
		r.base = r.pool
	}

	for name, cc := range clusters {
		c, err := r.newCluster(name, cc)
		if err != nil {
			return nil, err
		}
		r.clusters[name] = c
	}
	return r, nil
}

func (r *Registry) newCluster(name string, cc config.ClusterConfig) (*Cluster, error) {
	if len(cc.Addresses) == 0 {
		return nil, fmt.Errorf("cluster %q: no addresses", name)
	}

	c := &Cluster{name: name, transport: r.base}
	for _, addr := range cc.Addresses {
		u, err := url.Parse(strings.TrimRight(addr, "/"))
		if err != nil {
			return nil, fmt.Errorf("cluster %q: parsing %q: %w", name, addr, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("cluster %q: %q is not an absolute http(s) URL", name, addr)
		}
		c.targets = append(c.targets, u)
	}

	if cb := cc.CircuitBreaker; cb != nil && cb.Enabled {
		c.breaker = newBreakerTransport(name, cb, r.base, r.logger, r.onState)
		c.transport = c.breaker
		if r.onState != nil {
			r.onState(name, int(gobreaker.StateClosed))
		}
	}
	return c, nil
}

// Get returns the cluster called name.
func (r *Registry) Get(name string) (*Cluster, bool) {
	c, ok := r.clusters[name]
	return c, ok
}

// Lookup is Get with an error for unknown names.
func (r *Registry) Lookup(name string) (*Cluster, error) {
	c, ok := r.clusters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCluster, name)
	}
	return c, nil
}

// Names returns the cluster names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clusters))
	for name := range r.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases idle pooled connections.
func (r *Registry) Close() {
	if r.pool != nil {
		r.pool.CloseIdleConnections()
	}
}
