package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/vyrodovalexey/bizgw/internal/util"
)

// Sentinel errors for proxy operations.
var (
	// ErrNoCluster means the route names a cluster that is not registered.
	ErrNoCluster = errors.New("no cluster for route")

	// ErrUpstreamTimeout means the route timeout elapsed before the
	// backend answered.
	ErrUpstreamTimeout = errors.New("upstream request timed out")

	// ErrUpstreamUnavailable means the backend could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrClientGone means the caller disconnected before the backend
	// answered.
	ErrClientGone = errors.New("client disconnected")
)

// Failure kinds, used as the upstream_errors_total kind label.
const (
	KindUnreachable = "unreachable"
	KindTimeout     = "timeout"
	KindCircuitOpen = "circuit_open"
	KindCanceled    = "canceled"
	KindNoCluster   = "no_cluster"
)

// ProxyError describes a failed forward.
type ProxyError struct {
	Route   string
	Cluster string
	Target  string
	Kind    string
	Cause   error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("proxy %s: route=%s cluster=%s target=%s: %v", e.Kind, e.Route, e.Cluster, e.Target, e.Cause)
	}
	return fmt.Sprintf("proxy %s: route=%s cluster=%s: %v", e.Kind, e.Route, e.Cluster, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// Is matches any *ProxyError; causes are reached through Unwrap.
func (e *ProxyError) Is(target error) bool {
	_, ok := target.(*ProxyError)
	return ok
}

// Status maps the failure to the status code and error code written to
// the client. A client that went away gets nothing, reported as status 0.
func (e *ProxyError) Status() (int, string) {
	switch e.Kind {
	case KindCanceled:
		return 0, ""
	case KindTimeout:
		return http.StatusGatewayTimeout, util.CodeGatewayTimeout
	case KindCircuitOpen:
		return http.StatusServiceUnavailable, util.CodeServiceUnavailable
	default:
		return http.StatusBadGateway, util.CodeBadGateway
	}
}

// classify turns a round-trip error into a kind. clientCtx is the inbound
// request context before the route timeout was applied, so a deadline on
// the route and a caller hang-up can be told apart.
func classify(clientCtx context.Context, err error) (string, error) {
	switch {
	case clientCtx.Err() != nil:
		return KindCanceled, fmt.Errorf("%w: %w", ErrClientGone, err)
	case errors.Is(err, util.ErrCircuitOpen):
		return KindCircuitOpen, err
	case errors.Is(err, context.DeadlineExceeded), isNetTimeout(err):
		return KindTimeout, fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	default:
		return KindUnreachable, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
