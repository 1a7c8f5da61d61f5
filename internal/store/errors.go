package store

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by every operation on a Store that has no
// backend or has been closed.
var ErrNotInitialized = errors.New("memory store not initialized")

// BackendError wraps a persistence failure with the store operation that hit it.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsBackendError reports whether err carries a BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
