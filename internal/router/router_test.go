package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/identity"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

func testRoutes() []config.RouteConfig {
	return []config.RouteConfig{
		{Name: "identity", Prefix: "/api/identity", Cluster: "identity"},
		{Name: "cdr", Prefix: "/api/cdr", Cluster: "cdr", RequireAuth: true},
		{Name: "cdr-export", Prefix: "/api/cdr/export", Cluster: "cdr-export", Timeout: config.Duration(5 * time.Minute)},
		{Name: "rate", Prefix: "/api/rate", Cluster: "rate", RewritePrefix: "/api"},
	}
}

func TestTable_Match(t *testing.T) {
	t.Parallel()

	table, err := NewTable(testRoutes())
	require.NoError(t, err)

	tests := []struct {
		path      string
		wantRoute string
	}{
		{path: "/api/identity", wantRoute: "identity"},
		{path: "/api/identity/", wantRoute: "identity"},
		{path: "/api/identity/app-users/list", wantRoute: "identity"},
		{path: "/API/Identity/sbu", wantRoute: "identity"},
		{path: "/api/cdr/calls", wantRoute: "cdr"},
		{path: "/api/cdr/export", wantRoute: "cdr-export"},
		{path: "/api/cdr/export/2024.csv", wantRoute: "cdr-export"},
		{path: "/api/cdr/exports", wantRoute: "cdr"},
		{path: "/api/identityx", wantRoute: ""},
		{path: "/api", wantRoute: ""},
		{path: "/", wantRoute: ""},
		{path: "/api/unknown/thing", wantRoute: ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			route, err := table.Match(tt.path)
			if tt.wantRoute == "" {
				require.Error(t, err)
				assert.Nil(t, route)
				assert.ErrorIs(t, err, ErrRouteNotFound)
				assert.ErrorIs(t, err, util.ErrNotFound)

				var rnf *RouteNotFoundError
				require.True(t, errors.As(err, &rnf))
				assert.Equal(t, tt.path, rnf.Path)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoute, route.Name)
		})
	}
}

func TestTable_CatchAll(t *testing.T) {
	t.Parallel()

	table, err := NewTable([]config.RouteConfig{
		{Name: "fallback", Prefix: "/", Cluster: "legacy"},
		{Name: "jobs", Prefix: "/api/jobs", Cluster: "jobs"},
	})
	require.NoError(t, err)

	r, err := table.Match("/api/jobs/1")
	require.NoError(t, err)
	assert.Equal(t, "jobs", r.Name)

	r, err = table.Match("/anything")
	require.NoError(t, err)
	assert.Equal(t, "fallback", r.Name)
}

func TestNewTable_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		routes []config.RouteConfig
	}{
		{
			name: "duplicate prefix",
			routes: []config.RouteConfig{
				{Name: "a", Prefix: "/api/a", Cluster: "a"},
				{Name: "b", Prefix: "/api/a", Cluster: "b"},
			},
		},
		{
			name: "duplicate prefix differing in case",
			routes: []config.RouteConfig{
				{Name: "a", Prefix: "/api/a", Cluster: "a"},
				{Name: "b", Prefix: "/API/A", Cluster: "b"},
			},
		},
		{
			name: "duplicate name",
			routes: []config.RouteConfig{
				{Name: "a", Prefix: "/api/a", Cluster: "a"},
				{Name: "a", Prefix: "/api/b", Cluster: "b"},
			},
		},
		{name: "missing name", routes: []config.RouteConfig{{Prefix: "/api/a", Cluster: "a"}}},
		{name: "malformed prefix", routes: []config.RouteConfig{{Name: "a", Prefix: "api", Cluster: "a"}}},
		{name: "policy without compiler", routes: []config.RouteConfig{{Name: "a", Prefix: "/a", Cluster: "a", Policy: "true"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewTable(tt.routes)
			assert.Error(t, err)
		})
	}
}

type staticPolicy bool

func (p staticPolicy) Allow(context.Context, *identity.Principal) (bool, error) {
	return bool(p), nil
}

func TestNewTable_Policies(t *testing.T) {
	t.Parallel()

	compiled := 0
	compiler := func(expr string) (Policy, error) {
		compiled++
		if expr == "broken" {
			return nil, errors.New("syntax error")
		}
		return staticPolicy(expr == "allow"), nil
	}

	table, err := NewTable([]config.RouteConfig{
		{Name: "open", Prefix: "/open", Cluster: "c"},
		{Name: "guarded", Prefix: "/guarded", Cluster: "c", Policy: "allow"},
	}, WithPolicyCompiler(compiler))
	require.NoError(t, err)
	assert.Equal(t, 1, compiled)

	open, ok := table.Route("open")
	require.True(t, ok)
	assert.Nil(t, open.Policy)

	guarded, ok := table.Route("guarded")
	require.True(t, ok)
	allowed, err := guarded.Policy.Allow(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, allowed)

	_, err = NewTable([]config.RouteConfig{
		{Name: "bad", Prefix: "/bad", Cluster: "c", Policy: "broken"},
	}, WithPolicyCompiler(compiler))
	assert.ErrorContains(t, err, "syntax error")
}

func TestRoute_ForwardPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prefix  string
		rewrite string
		path    string
		want    string
	}{
		{name: "verbatim", prefix: "/api/identity", path: "/api/identity/sbu/list", want: "/api/identity/sbu/list"},
		{name: "verbatim keeps case", prefix: "/api/identity", path: "/API/Identity/Sbu", want: "/API/Identity/Sbu"},
		{name: "rewrite", prefix: "/api/rate", rewrite: "/api", path: "/api/rate/plans/7", want: "/api/plans/7"},
		{name: "rewrite exact", prefix: "/api/rate", rewrite: "/api", path: "/api/rate", want: "/api"},
		{name: "rewrite to root", prefix: "/api/rate", rewrite: "/", path: "/api/rate/plans", want: "/plans"},
		{name: "rewrite to root exact", prefix: "/api/rate", rewrite: "/", path: "/api/rate", want: "/"},
		{name: "root prefix rewrite", prefix: "/", rewrite: "/legacy", path: "/x/y", want: "/legacy/x/y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &Route{Prefix: tt.prefix, RewritePrefix: tt.rewrite}
			assert.Equal(t, tt.want, r.ForwardPath(tt.path))
		})
	}
}

func TestTable_Accessors(t *testing.T) {
	t.Parallel()

	table, err := NewTable(testRoutes())
	require.NoError(t, err)

	routes := table.Routes()
	require.Len(t, routes, 4)
	assert.Equal(t, "cdr-export", routes[0].Name, "longest prefix first")
	assert.Equal(t, []string{"cdr", "cdr-export", "identity", "rate"}, table.Clusters())

	r, ok := table.Route("cdr")
	require.True(t, ok)
	assert.Equal(t, config.DefaultRouteTimeout, r.Timeout)

	r, _ = table.Route("cdr-export")
	assert.Equal(t, 5*time.Minute, r.Timeout)

	_, ok = table.Route("missing")
	assert.False(t, ok)
}
