// Package proxy forwards matched requests to their backend cluster.
//
// Bodies stream in both directions (FlushInterval -1). The path and raw
// query reach the backend byte for byte unless the route rewrites its
// prefix. Backend responses, error statuses included, are relayed
// unchanged; only failures to get a response are turned into gateway
// errors: 502 bad_gateway, 504 gateway_timeout, 503 service_unavailable.
package proxy

import (
	"context"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/vyrodovalexey/bizgw/internal/backend"
	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/router"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// Proxy forwards requests for matched routes.
type Proxy struct {
	clusters      *backend.Registry
	logger        observability.Logger
	metrics       *observability.Metrics
	flushInterval time.Duration
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(p *Proxy) {
		p.logger = logger
	}
}

// WithMetrics records upstream failures on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Proxy) {
		p.metrics = m
	}
}

// WithFlushInterval overrides the streaming flush interval.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Proxy) {
		p.flushInterval = d
	}
}

// New creates a Proxy over clusters.
func New(clusters *backend.Registry, opts ...Option) *Proxy {
	p := &Proxy{
		clusters:      clusters,
		logger:        observability.NopLogger(),
		flushInterval: -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Forward sends r to the route's cluster and relays the response to w.
// Cancelling r's context aborts the backend call. The route timeout bounds
// the wait for the backend's response headers; once they arrive the body
// streams for as long as the client stays connected.
func (p *Proxy) Forward(w http.ResponseWriter, r *http.Request, route *router.Route) {
	cluster, ok := p.clusters.Get(route.Cluster)
	if !ok {
		p.fail(w, r, &ProxyError{Route: route.Name, Cluster: route.Cluster, Kind: KindNoCluster, Cause: ErrNoCluster})
		return
	}
	target := cluster.Next()

	clientCtx := r.Context()
	ctx, cancel := context.WithCancelCause(clientCtx)
	defer cancel(nil)
	deadline := time.AfterFunc(route.Timeout, func() { cancel(context.DeadlineExceeded) })
	defer deadline.Stop()

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			p.rewrite(pr, route)
			pr.SetURL(target)
			// Keep the caller's forwarding chain; Rewrite drops it by default.
			pr.Out.Header["X-Forwarded-For"] = pr.In.Header["X-Forwarded-For"]
			pr.SetXForwarded()
			if id := observability.RequestIDFromContext(pr.In.Context()); id != "" && pr.Out.Header.Get(util.HeaderRequestID) == "" {
				pr.Out.Header.Set(util.HeaderRequestID, id)
			}
			observability.InjectTraceContext(pr.Out.Context(), pr.Out)
		},
		Transport:     cluster.Transport(),
		FlushInterval: p.flushInterval,
		ModifyResponse: func(*http.Response) error {
			deadline.Stop()
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			kind, cause := classify(clientCtx, util.DeadlineCause(ctx, err))
			p.fail(w, r, &ProxyError{
				Route:   route.Name,
				Cluster: route.Cluster,
				Target:  target.String(),
				Kind:    kind,
				Cause:   cause,
			})
		},
	}

	rp.ServeHTTP(w, r.WithContext(ctx))
}

// rewrite applies the route's prefix rewrite to the outbound path. Without
// one the inbound path, including its escaped form, is kept as received.
func (p *Proxy) rewrite(pr *httputil.ProxyRequest, route *router.Route) {
	if route.RewritePrefix == "" {
		return
	}
	u := pr.Out.URL
	u.Path = route.ForwardPath(u.Path)
	if u.RawPath == "" {
		return
	}
	// The escaped form only survives when it spells the prefix literally.
	if n := len(route.Prefix); len(u.RawPath) >= n && strings.EqualFold(u.RawPath[:n], route.Prefix) {
		u.RawPath = route.ForwardPath(u.RawPath)
	} else {
		u.RawPath = ""
	}
}

func (p *Proxy) fail(w http.ResponseWriter, r *http.Request, perr *ProxyError) {
	if p.metrics != nil {
		p.metrics.RecordUpstreamError(perr.Cluster, perr.Kind)
	}

	logger := p.logger.WithContext(r.Context())
	status, code := perr.Status()
	if status == 0 {
		logger.Debug("client disconnected before upstream responded",
			observability.String("route", perr.Route),
			observability.String("path", r.URL.Path),
		)
		return
	}

	logger.Warn("upstream request failed",
		observability.String("route", perr.Route),
		observability.String("cluster", perr.Cluster),
		observability.String("target", perr.Target),
		observability.String("kind", perr.Kind),
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
		observability.Error(perr),
	)
	util.WriteError(w, status, code, http.StatusText(status))
}
