package jwt

import (
	"errors"
	"fmt"
)

// Sentinel errors for token validation.
var (
	ErrEmptyToken            = errors.New("token is empty")
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token has expired")
	ErrTokenNotYetValid      = errors.New("token is not yet valid")
	ErrTokenInvalidIssuer    = errors.New("token issuer is invalid")
	ErrTokenInvalidAudience  = errors.New("token audience is invalid")
)

// Sentinel errors for configuration and extraction.
var (
	ErrInvalidKey    = errors.New("signing key is invalid")
	ErrMissingHeader = errors.New("missing authorization header")
	ErrInvalidPrefix = errors.New("authorization header is not a bearer token")
)

// Reason codes reported to clients and metrics.
const (
	ReasonMissingToken     = "missing_token"
	ReasonMalformed        = "token_malformed"
	ReasonInvalidSignature = "invalid_signature"
	ReasonExpired          = "token_expired"
	ReasonNotYetValid      = "token_not_yet_valid"
	ReasonInvalidIssuer    = "invalid_issuer"
	ReasonInvalidAudience  = "invalid_audience"
	ReasonInvalid          = "invalid_token"
)

// ValidationError is returned by Validator.Validate. Cause is one of the
// package sentinels.
type ValidationError struct {
	Cause  error
	Detail error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("jwt validation error: %v: %v", e.Cause, e.Detail)
	}
	return fmt.Sprintf("jwt validation error: %v", e.Cause)
}

// Unwrap returns the sentinel cause.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ValidationError or matches the cause.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return errors.Is(e.Cause, target)
}

// SigningError is returned when a token cannot be minted.
type SigningError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SigningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("jwt signing error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("jwt signing error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *SigningError) Unwrap() error {
	return e.Cause
}

// Reason maps a validation or extraction error to its reason code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyToken), errors.Is(err, ErrMissingHeader):
		return ReasonMissingToken
	case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrInvalidPrefix):
		return ReasonMalformed
	case errors.Is(err, ErrTokenInvalidSignature):
		return ReasonInvalidSignature
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, ErrTokenNotYetValid):
		return ReasonNotYetValid
	case errors.Is(err, ErrTokenInvalidIssuer):
		return ReasonInvalidIssuer
	case errors.Is(err, ErrTokenInvalidAudience):
		return ReasonInvalidAudience
	default:
		return ReasonInvalid
	}
}
