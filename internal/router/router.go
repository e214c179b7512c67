package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/identity"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// ErrRouteNotFound is returned by Match when no prefix covers the path.
var ErrRouteNotFound = errors.New("route not found")

// RouteNotFoundError carries the unmatched path.
type RouteNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route for path %s", e.Path)
}

// Is matches ErrRouteNotFound and util.ErrNotFound.
func (e *RouteNotFoundError) Is(target error) bool {
	return target == ErrRouteNotFound || target == util.ErrNotFound
}

// Policy decides whether a principal may use a route. A nil principal is
// an anonymous caller.
type Policy interface {
	Allow(ctx context.Context, p *identity.Principal) (bool, error)
}

// PolicyCompiler turns a route's policy expression into a Policy.
type PolicyCompiler func(expr string) (Policy, error)

// Route is a compiled route table entry.
type Route struct {
	Name          string
	Prefix        string
	Cluster       string
	RequireAuth   bool
	Policy        Policy
	RewritePrefix string
	Timeout       time.Duration
}

// ForwardPath returns the path to send upstream. Without RewritePrefix the
// path is passed through verbatim.
func (r *Route) ForwardPath(path string) string {
	if r.RewritePrefix == "" {
		return path
	}
	rest := path[len(r.Prefix):]
	if r.Prefix == "/" {
		rest = path[1:]
		if rest != "" {
			rest = "/" + rest
		}
	}
	if r.RewritePrefix == "/" {
		if rest == "" {
			return "/"
		}
		return rest
	}
	return r.RewritePrefix + rest
}

// matches reports whether path falls under the route prefix on a segment
// boundary.
func (r *Route) matches(path string) bool {
	if r.Prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	n := len(r.Prefix)
	if len(path) < n || !strings.EqualFold(path[:n], r.Prefix) {
		return false
	}
	return len(path) == n || path[n] == '/'
}

// Table is an immutable route table ordered longest prefix first.
type Table struct {
	routes []*Route
	byName map[string]*Route
}

// Option configures NewTable.
type Option func(*tableOptions)

type tableOptions struct {
	compile PolicyCompiler
}

// WithPolicyCompiler enables route policies. Without it a route that
// declares a policy is rejected.
func WithPolicyCompiler(c PolicyCompiler) Option {
	return func(o *tableOptions) {
		o.compile = c
	}
}

// NewTable compiles routes. Duplicate names or prefixes, malformed
// prefixes and policy compile failures are errors.
func NewTable(routes []config.RouteConfig, opts ...Option) (*Table, error) {
	var o tableOptions
	for _, opt := range opts {
		opt(&o)
	}

	t := &Table{
		routes: make([]*Route, 0, len(routes)),
		byName: make(map[string]*Route, len(routes)),
	}
	prefixes := make(map[string]string, len(routes))

	for _, rc := range routes {
		if rc.Name == "" {
			return nil, fmt.Errorf("route with prefix %q has no name", rc.Prefix)
		}
		if _, dup := t.byName[rc.Name]; dup {
			return nil, fmt.Errorf("duplicate route name %q", rc.Name)
		}
		if err := config.ValidatePrefix(rc.Prefix); err != nil {
			return nil, fmt.Errorf("route %q: %w", rc.Name, err)
		}
		key := strings.ToLower(rc.Prefix)
		if other, dup := prefixes[key]; dup {
			return nil, fmt.Errorf("route %q: prefix %q already used by route %q", rc.Name, rc.Prefix, other)
		}
		prefixes[key] = rc.Name

		route := &Route{
			Name:          rc.Name,
			Prefix:        rc.Prefix,
			Cluster:       rc.Cluster,
			RequireAuth:   rc.RequireAuth,
			RewritePrefix: rc.RewritePrefix,
			Timeout:       rc.Timeout.Duration(),
		}
		if route.Timeout == 0 {
			route.Timeout = config.DefaultRouteTimeout
		}
		if rc.Policy != "" {
			if o.compile == nil {
				return nil, fmt.Errorf("route %q declares a policy but policies are disabled", rc.Name)
			}
			p, err := o.compile(rc.Policy)
			if err != nil {
				return nil, fmt.Errorf("route %q: compiling policy: %w", rc.Name, err)
			}
			route.Policy = p
		}

		t.routes = append(t.routes, route)
		t.byName[rc.Name] = route
	}

	sort.SliceStable(t.routes, func(i, j int) bool {
		return len(t.routes[i].Prefix) > len(t.routes[j].Prefix)
	})
	return t, nil
}

// Match returns the route with the longest prefix covering path.
func (t *Table) Match(path string) (*Route, error) {
	for _, r := range t.routes {
		if r.matches(path) {
			return r, nil
		}
	}
	return nil, &RouteNotFoundError{Path: path}
}

// Route returns the route called name.
func (t *Table) Route(name string) (*Route, bool) {
	r, ok := t.byName[name]
	return r, ok
}

// Routes returns the routes longest prefix first.
func (t *Table) Routes() []*Route {
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Clusters returns the distinct cluster names referenced by the table.
func (t *Table) Clusters() []string {
	seen := make(map[string]struct{}, len(t.routes))
	var out []string
	for _, r := range t.routes {
		if _, ok := seen[r.Cluster]; !ok {
			seen[r.Cluster] = struct{}{}
			out = append(out, r.Cluster)
		}
	}
	sort.Strings(out)
	return out
}
