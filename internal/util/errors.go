package util

import (
	"context"
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTimeout            = errors.New("timeout")
	ErrCircuitOpen        = errors.New("circuit breaker open")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)

// Client-facing error codes.
const (
	CodeRouteNotFound      = "route_not_found"
	CodeUnauthorized       = "unauthorized"
	CodeTokenExpired       = "token_expired"
	CodeForbidden          = "forbidden"
	CodeBadRequest         = "bad_request"
	CodeInvalidCredentials = "invalid_credentials"
	CodeBadGateway         = "bad_gateway"
	CodeGatewayTimeout     = "gateway_timeout"
	CodeServiceUnavailable = "service_unavailable"
	CodeRateLimited        = "rate_limited"
	CodeNotFound           = "not_found"
	CodeInternal           = "internal_error"
)

// ServerError marks a 5xx upstream response so circuit breakers count it
// as a failure even though the round trip itself succeeded.
type ServerError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("upstream server error: status %d", e.StatusCode)
}

// Is reports whether target is a ServerError or ErrBackendUnavailable.
func (e *ServerError) Is(target error) bool {
	if target == ErrBackendUnavailable {
		return true
	}
	_, ok := target.(*ServerError)
	return ok
}

// NewServerError creates a ServerError for statusCode.
func NewServerError(statusCode int) *ServerError {
	return &ServerError{StatusCode: statusCode}
}

// DeadlineCause attaches context.DeadlineExceeded to err when ctx was
// cancelled with it as the cause. A deadline enforced through
// context.WithCancelCause otherwise surfaces as a plain context.Canceled.
func DeadlineCause(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(context.Cause(ctx), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}
