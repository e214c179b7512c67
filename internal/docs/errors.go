package docs

import (
	"errors"
	"fmt"
)

// Documentation errors.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrFetchFailed     = errors.New("document fetch failed")
	ErrInvalidDocument = errors.New("response is not an API document")
)

// FetchError describes why one service's document could not be used.
type FetchError struct {
	Service    string
	URL        string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s document from %s: status %d", e.Service, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s document from %s: %v", e.Service, e.URL, e.Cause)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is matches ErrFetchFailed.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}
