package server

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common connection and server error conditions.
var (
	// ErrConnClosed is returned when an operation is attempted on a closed connection.
	ErrConnClosed = errors.New("server: connection closed")

	// ErrConnNotFound is returned when a connection ID does not exist.
	ErrConnNotFound = errors.New("server: connection not found")

	// ErrMaxConnectionsReached is returned when the connection limit is reached.
	ErrMaxConnectionsReached = errors.New("server: max connections reached")

	// ErrSlowConsumer is returned when a connection's outbound queue overflows.
	ErrSlowConsumer = errors.New("server: outbound queue full")

	// ErrOriginNotAllowed is returned when the request origin is not in the allow-list.
	ErrOriginNotAllowed = errors.New("server: origin not allowed")

	// ErrServerClosed is returned by operations attempted after Shutdown.
	ErrServerClosed = errors.New("server: closed")
)

// ConnError wraps an error with connection context for debugging.
type ConnError struct {
	ConnID string
	Op     string // Operation that failed
	Err    error  // Underlying error
}

// Error returns the error message with connection context.
func (e *ConnError) Error() string {
	if e.ConnID == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: conn %s: %s: %v", e.ConnID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// NewConnError creates a new ConnError.
func NewConnError(connID, op string, err error) *ConnError {
	return &ConnError{
		ConnID: connID,
		Op:     op,
		Err:    err,
	}
}

// ConfigError lists the problems found by ValidateConfig.
type ConfigError struct {
	Errs []error
}

// Error returns all problems joined by semicolons.
func (e *ConfigError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "server: invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns the individual problems for errors.Is/As.
func (e *ConfigError) Unwrap() []error {
	return e.Errs
}
