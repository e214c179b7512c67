package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/identity"
	"github.com/vyrodovalexey/bizgw/internal/router"
)

func admin() *identity.Principal {
	return &identity.Principal{
		Gid:    "g-1",
		UserID: "1",
		Email:  "admin@example.com",
		Roles:  []string{"User", "Admin"},
		SbuID:  "7",
	}
}

func TestCompile_Evaluate(t *testing.T) {
	t.Parallel()

	c, err := NewCompiler()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		principal *identity.Principal
		want      bool
	}{
		{name: "authenticated admin", expr: `authenticated && "Admin" in principal.roles`, principal: admin(), want: true},
		{name: "anonymous not admin", expr: `authenticated && "Admin" in principal.roles`, principal: nil, want: false},
		{name: "anonymous empty roles", expr: `size(principal.roles) == 0`, principal: nil, want: true},
		{name: "role case matters", expr: `"admin" in principal.roles`, principal: admin(), want: false},
		{name: "sbu match", expr: `principal.sbuId == "7"`, principal: admin(), want: true},
		{name: "email suffix", expr: `principal.email.endsWith("@example.com")`, principal: admin(), want: true},
		{name: "absent field is empty", expr: `principal.teamId == ""`, principal: admin(), want: true},
		{name: "exists macro", expr: `principal.roles.exists(r, r.startsWith("Us"))`, principal: admin(), want: true},
		{name: "literal", expr: `true`, principal: nil, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := c.Compile(tt.expr)
			require.NoError(t, err)

			got, err := p.Allow(context.Background(), tt.principal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	c, err := NewCompiler()
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
	}{
		{name: "syntax", expr: "invalid syntax {{{{"},
		{name: "undeclared variable", expr: `request.path == "/"`},
		{name: "string result", expr: `"a" + "b"`},
		{name: "int result", expr: `1 + 2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := c.Compile(tt.expr)
			require.Error(t, err)
			assert.Nil(t, p)

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.expr, ce.Expression)
		})
	}
}

func TestPolicy_DynamicNonBool(t *testing.T) {
	t.Parallel()

	c, err := NewCompiler()
	require.NoError(t, err)

	p, err := c.Compile(`principal.email`)
	require.NoError(t, err, "dyn output type is accepted at compile time")

	_, err = p.Allow(context.Background(), admin())
	assert.ErrorIs(t, err, ErrNotBoolean)
}

func TestPolicy_Clock(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewCompiler(WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	p, err := c.Compile(`now > timestamp("2025-01-01T00:00:00Z")`)
	require.NoError(t, err)

	ok, err := p.Allow(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompiler_WithRouteTable(t *testing.T) {
	t.Parallel()

	c, err := NewCompiler()
	require.NoError(t, err)

	table, err := router.NewTable([]config.RouteConfig{
		{Name: "fincosts", Prefix: "/api/fincosts", Cluster: "fincosts", Policy: `"Admin" in principal.roles`},
	}, router.WithPolicyCompiler(c.Compile))
	require.NoError(t, err)

	r, err := table.Match("/api/fincosts/summary")
	require.NoError(t, err)
	require.NotNil(t, r.Policy)

	ok, err := r.Policy.Allow(context.Background(), &identity.Principal{Roles: []string{"User"}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Policy.Allow(context.Background(), admin())
	require.NoError(t, err)
	assert.True(t, ok)
}
