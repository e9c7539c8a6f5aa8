package state

import (
	"errors"
	"fmt"
)

// Common store errors.
var (
	// ErrNotFound indicates the requested session does not exist.
	ErrNotFound = errors.New("session not found")
)

// NotFoundError wraps ErrNotFound with session details.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
