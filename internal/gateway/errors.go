package gateway

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	ErrNotStopped = errors.New("gateway is not in stopped state")
	ErrNotRunning = errors.New("gateway is not running")
	ErrNilConfig  = errors.New("configuration is required")
)

// StageError ends a request inside the pipeline. Status and Code are what
// the client sees.
type StageError struct {
	Stage   Stage
	Status  int
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Cause
}
