package institutions

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when the backend has no institution with the ID.
	ErrNotFound = errors.New("institution not found")

	// ErrUnexpectedStatus is returned for any other non-success response.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// TransportError wraps a network failure or an error response with the
// operation that caused it and the best message the backend supplied.
type TransportError struct {
	Op         string // Operation that failed (e.g., "update")
	ID         string // Short ID if applicable
	StatusCode int    // 0 when no response was received
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	prefix := e.Op
	if e.ID != "" {
		prefix = fmt.Sprintf("%s %s", e.Op, e.ID)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", prefix, e.Message, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
