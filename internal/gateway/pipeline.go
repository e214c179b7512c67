package gateway

import (
	"net/http"

	"github.com/vyrodovalexey/bizgw/internal/audit"
	"github.com/vyrodovalexey/bizgw/internal/identity"
	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/router"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// Stage is a step of the proxied request lifecycle.
type Stage string

// Pipeline stages in order. A request is either Authenticated or
// Anonymous, never both.
const (
	StageReceived        Stage = "received"
	StageAuthenticated   Stage = "authenticated"
	StageAnonymous       Stage = "anonymous"
	StageHeadersInjected Stage = "headers_injected"
	StageRouted          Stage = "routed"
	StageForwarded       Stage = "forwarded"
	StageResponseRelayed Stage = "response_relayed"
)

// Forwarder relays a routed request to its backend and writes the
// response, or the gateway error for a failed upstream call.
// *proxy.Proxy implements it.
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, route *router.Route)
}

// RequestContext is what one stage hands to the next.
type RequestContext struct {
	Stage     Stage
	Request   *http.Request
	Principal *identity.Principal
	Route     *router.Route

	// authErr is why authentication produced no principal. It only
	// matters once the route turns out to require authentication.
	authErr error
}

// Pipeline handles every request not owned by the gateway itself.
type Pipeline struct {
	auth    *Authenticator
	table   *router.Table
	forward Forwarder
	logger  observability.Logger
	metrics *observability.Metrics
	auditor audit.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger.
func WithPipelineLogger(logger observability.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPipelineMetrics sets the metrics.
func WithPipelineMetrics(m *observability.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithPipelineAuditor records policy denials of authenticated callers.
func WithPipelineAuditor(a audit.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.auditor = a
	}
}

// NewPipeline creates a Pipeline.
func NewPipeline(auth *Authenticator, table *router.Table, fwd Forwarder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		auth:    auth,
		table:   table,
		forward: fwd,
		logger:  observability.NopLogger(),
		auditor: audit.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ServeHTTP runs the stages in order. The first StageError is written to
// the client and ends the request before any backend is contacted.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := RequestContext{Stage: StageReceived, Request: r}

	stages := []func(RequestContext) (RequestContext, *StageError){
		p.authenticate,
		p.inject,
		p.route,
		p.authorize,
	}
	for _, stage := range stages {
		next, serr := stage(rc)
		if serr != nil {
			p.fail(w, rc.Request, serr)
			return
		}
		rc = next
	}

	p.relay(w, rc)
}

// relay forwards the routed request. Forward has written the backend
// response, or the gateway error for a failed upstream call, by the time
// it returns.
func (p *Pipeline) relay(w http.ResponseWriter, rc RequestContext) {
	rc.Stage = StageForwarded
	p.trace(rc)
	p.forward.Forward(w, rc.Request, rc.Route)
	rc.Stage = StageResponseRelayed
	p.trace(rc)
}

func (p *Pipeline) trace(rc RequestContext) {
	p.logger.WithContext(rc.Request.Context()).Debug("pipeline stage",
		observability.String("stage", string(rc.Stage)),
		observability.String("route", rc.Route.Name),
	)
}

// authenticate never rejects. Whether a missing or bad token matters is
// decided by authorize once the route is known.
func (p *Pipeline) authenticate(rc RequestContext) (RequestContext, *StageError) {
	principal, err := p.auth.Authenticate(rc.Request)
	if err != nil {
		rc.Stage = StageAnonymous
		rc.authErr = err
		return rc, nil
	}
	rc.Stage = StageAuthenticated
	rc.Principal = principal
	rc.Request = withPrincipal(rc.Request, principal)
	return rc, nil
}

func (p *Pipeline) route(rc RequestContext) (RequestContext, *StageError) {
	route, err := p.table.Match(rc.Request.URL.Path)
	if err != nil {
		return rc, &StageError{
			Stage:   rc.Stage,
			Status:  http.StatusNotFound,
			Code:    util.CodeRouteNotFound,
			Message: "no route for " + rc.Request.URL.Path,
			Cause:   err,
		}
	}
	observability.SetRouteLabel(rc.Request.Context(), route.Name)
	rc.Route = route
	rc.Stage = StageRouted
	return rc, nil
}

// authorize enforces requireAuth and the route policy.
func (p *Pipeline) authorize(rc RequestContext) (RequestContext, *StageError) {
	if rc.Route.RequireAuth && rc.Principal == nil {
		serr := p.auth.reject(rc.Request, rc.authErr)
		serr.Stage = rc.Stage
		return rc, serr
	}

	if rc.Route.Policy != nil {
		ok, err := rc.Route.Policy.Allow(rc.Request.Context(), rc.Principal)
		if err != nil {
			p.logger.WithContext(rc.Request.Context()).Warn("route policy evaluation failed",
				observability.String("route", rc.Route.Name),
				observability.Error(err),
			)
		}
		if !ok {
			if rc.Principal == nil {
				serr := p.auth.reject(rc.Request, rc.authErr)
				serr.Stage = rc.Stage
				return rc, serr
			}
			p.auditor.Log(rc.Request.Context(), audit.Event{
				Type:     audit.EventTypeAuthorization,
				Action:   audit.ActionAccess,
				Outcome:  audit.OutcomeDenied,
				Subject:  subjectOf(rc.Principal),
				Resource: rc.Route.Name + " " + rc.Request.URL.Path,
				Reason:   util.CodeForbidden,
			})
			return rc, &StageError{
				Stage:   rc.Stage,
				Status:  http.StatusForbidden,
				Code:    util.CodeForbidden,
				Message: "access to " + rc.Route.Name + " is not allowed",
				Cause:   util.ErrForbidden,
			}
		}
	}
	return rc, nil
}

func subjectOf(p *identity.Principal) string {
	if p.Email != "" {
		return p.Email
	}
	return p.UserID
}

// inject replaces the caller's credentials with identity headers. The
// request is cloned so the inbound header map is left untouched.
func (p *Pipeline) inject(rc RequestContext) (RequestContext, *StageError) {
	out := rc.Request.Clone(rc.Request.Context())
	identity.Inject(out.Header, rc.Principal)
	rc.Request = out
	rc.Stage = StageHeadersInjected
	return rc, nil
}

func (p *Pipeline) fail(w http.ResponseWriter, r *http.Request, serr *StageError) {
	if serr.Status == http.StatusUnauthorized {
		challenge(w.Header(), serr)
	}
	p.logger.WithContext(r.Context()).Debug("request rejected",
		observability.String("stage", string(serr.Stage)),
		observability.Int("status", serr.Status),
		observability.String("path", r.URL.Path),
	)
	util.WriteError(w, serr.Status, serr.Code, serr.Message)
}
