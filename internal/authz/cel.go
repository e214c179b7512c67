// Package authz compiles route policies written in CEL.
//
// A policy is a boolean expression over the caller:
//
//	authenticated && "Admin" in principal.roles
//	principal.sbuId == "7" || principal.email.endsWith("@example.com")
//
// Variables available to an expression:
//
//	authenticated  bool                whether a token was presented and valid
//	principal      map(string, dyn)    gid, userId, email, firstName, lastName,
//	                                   roles (list of string), sbuId, teamId
//	now            timestamp           evaluation time
//
// Absent fields are empty strings, and roles is an empty list for an
// anonymous caller, so expressions never fail on a missing key.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/vyrodovalexey/bizgw/internal/identity"
	"github.com/vyrodovalexey/bizgw/internal/router"
)

// ErrNotBoolean is returned when a policy does not evaluate to a bool.
var ErrNotBoolean = errors.New("policy must evaluate to a bool")

// CompileError wraps a CEL parse or type-check failure.
type CompileError struct {
	Expression string
	Cause      error
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compiling policy %q: %v", e.Expression, e.Cause)
}

// Unwrap returns the underlying CEL error.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// Compiler compiles expressions against a shared CEL environment.
type Compiler struct {
	env *cel.Env
	now func() time.Time
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithClock overrides the time bound to the now variable.
func WithClock(now func() time.Time) Option {
	return func(c *Compiler) {
		c.now = now
	}
}

// NewCompiler creates the CEL environment.
func NewCompiler(opts ...Option) (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("authenticated", cel.BoolType),
		cel.Variable("principal", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	c := &Compiler{env: env, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Compile parses and type-checks expr. It matches router.PolicyCompiler.
func (c *Compiler) Compile(expr string) (router.Policy, error) {
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &CompileError{Expression: expr, Cause: issues.Err()}
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, &CompileError{Expression: expr, Cause: ErrNotBoolean}
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, &CompileError{Expression: expr, Cause: err}
	}
	return &celPolicy{expr: expr, prg: prg, now: c.now}, nil
}

type celPolicy struct {
	expr string
	prg  cel.Program
	now  func() time.Time
}

// Allow evaluates the policy for p. Evaluation errors deny.
func (p *celPolicy) Allow(ctx context.Context, principal *identity.Principal) (bool, error) {
	out, _, err := p.prg.ContextEval(ctx, map[string]any{
		"authenticated": principal != nil,
		"principal":     attributes(principal),
		"now":           p.now(),
	})
	if err != nil {
		return false, fmt.Errorf("evaluating policy %q: %w", p.expr, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluating policy %q: %w", p.expr, ErrNotBoolean)
	}
	return allowed, nil
}

func (p *celPolicy) String() string {
	return p.expr
}

func attributes(p *identity.Principal) map[string]any {
	if p == nil {
		p = &identity.Principal{}
	}
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	return map[string]any{
		"gid":       p.Gid,
		"userId":    p.UserID,
		"email":     p.Email,
		"firstName": p.FirstName,
		"lastName":  p.LastName,
		"roles":     roles,
		"sbuId":     p.SbuID,
		"teamId":    p.TeamID,
	}
}
