package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vyrodovalexey/bizgw/internal/backend"
	"github.com/vyrodovalexey/bizgw/internal/observability"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

// DefaultVerifyTimeout bounds one call to the identity service.
const DefaultVerifyTimeout = 30 * time.Second

// HTTPVerifier asks the identity service to check credentials. It shares
// the cluster's pooled transport, and circuit breaker when configured,
// with the proxy.
type HTTPVerifier struct {
	cluster *backend.Cluster
	path    string
	client  *resty.Client
	logger  observability.Logger
}

// HTTPVerifierOption configures an HTTPVerifier.
type HTTPVerifierOption func(*HTTPVerifier)

// WithVerifierLogger sets the logger.
func WithVerifierLogger(logger observability.Logger) HTTPVerifierOption {
	return func(v *HTTPVerifier) {
		v.logger = logger
	}
}

// WithVerifierTimeout overrides DefaultVerifyTimeout.
func WithVerifierTimeout(d time.Duration) HTTPVerifierOption {
	return func(v *HTTPVerifier) {
		if d > 0 {
			v.client.SetTimeout(d)
		}
	}
}

// NewHTTPVerifier creates a verifier that POSTs to path on cluster.
func NewHTTPVerifier(cluster *backend.Cluster, path string, opts ...HTTPVerifierOption) *HTTPVerifier {
	v := &HTTPVerifier{
		cluster: cluster,
		path:    path,
		client: resty.New().
			SetTransport(cluster.Transport()).
			SetTimeout(DefaultVerifyTimeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify implements CredentialVerifier. 400, 401, 403 and 404 from the
// identity service mean invalid credentials; anything else that is not a
// 200 is a BackendError.
func (v *HTTPVerifier) Verify(ctx context.Context, creds Credentials) (*UserInfo, error) {
	var info UserInfo
	req := v.client.R().
		SetContext(ctx).
		SetBody(creds).
		SetResult(&info).
		ForceContentType("application/json")
	if id := observability.RequestIDFromContext(ctx); id != "" {
		req.SetHeader(util.HeaderRequestID, id)
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := req.Post(v.cluster.Next().String() + v.path)
	if err != nil {
		v.logger.Warn("identity verify call failed",
			observability.String("cluster", v.cluster.Name()),
			observability.Error(err),
		)
		return nil, &BackendError{Op: "verify", Timeout: isTimeout(err), Cause: err}
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
		if info.Gid == "" && info.UserID == "" && info.Email == "" {
			return nil, &BackendError{Op: "verify", Cause: errors.New("empty user in identity response")}
		}
		return &info, nil
	case code == http.StatusBadRequest, code == http.StatusUnauthorized,
		code == http.StatusForbidden, code == http.StatusNotFound:
		return nil, ErrInvalidCredentials
	default:
		v.logger.Warn("identity verify returned unexpected status",
			observability.String("cluster", v.cluster.Name()),
			observability.Int("status", code),
		)
		return nil, &BackendError{Op: "verify", StatusCode: code, Cause: util.NewServerError(code)}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
