package auth

import (
	"errors"
	"fmt"

	"github.com/vyrodovalexey/bizgw/internal/util"
)

// Sentinel errors for credential checks.
var (
	// ErrInvalidCredentials means the identity check answered "no".
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMissingCredentials means the email or password was empty.
	ErrMissingCredentials = errors.New("email and password are required")

	// ErrUnknownUser is returned by a verifier that has no opinion about
	// the given email, letting a ChainVerifier ask the next one.
	ErrUnknownUser = errors.New("unknown user")
)

// Error kinds carried by AuthError.
const (
	KindInvalidCredentials = "invalid_credentials"
	KindMissingCredentials = "missing_credentials"
)

// AuthError is a login failure the client caused.
type AuthError struct {
	Kind  string
	Cause error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %v", e.Kind, e.Cause)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// BackendError is a failure to get an answer from the identity service.
type BackendError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Cause      error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("identity backend %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("identity backend %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is matches util.ErrBackendUnavailable, and util.ErrTimeout for timeouts.
func (e *BackendError) Is(target error) bool {
	switch target {
	case util.ErrBackendUnavailable:
		return true
	case util.ErrTimeout:
		return e.Timeout
	}
	return false
}
