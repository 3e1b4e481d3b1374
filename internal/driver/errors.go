package driver

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all drivers. Drivers translate engine-native
// failures into these before they reach callers; native error types never
// cross the contract boundary.
var (
	ErrNotConnected   = errors.New("not connected to database")
	ErrClosed         = errors.New("connection closed")
	ErrCancelled      = errors.New("operation cancelled")
	ErrTimeout        = errors.New("operation timed out")
	ErrRowNotFound    = errors.New("row not found")
	ErrDeleteRejected = errors.New("delete rejected")
	ErrTxDone         = errors.New("transaction already committed or rolled back")
)

// UnavailableError reports that no driver is linked for an engine kind.
type UnavailableError struct {
	Kind   EngineKind
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("driver unavailable for %s: %s", e.Kind, e.Reason)
}

// ConnectionError wraps a failure to establish or keep a connection. It
// carries the original cause's message but never credentials.
type ConnectionError struct {
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %s", e.Message)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError wraps an engine-side statement failure.
type QueryError struct {
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %s", e.Message)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ConfigError reports an invalid connection profile, such as a missing
// required database name.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Message)
}

// BatchError aggregates independent per-row failures from a batch
// operation. Each entry names the row that failed and why.
type BatchError struct {
	Failures []RowFailure
}

// RowFailure is one failed row in a batch.
type RowFailure struct {
	RowID string
	Err   error
}

func (e *BatchError) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("1 row failed: %s: %v", f.RowID, f.Err)
	}
	msg := fmt.Sprintf("%d rows failed:", len(e.Failures))
	for _, f := range e.Failures {
		msg += fmt.Sprintf(" %s: %v;", f.RowID, f.Err)
	}
	return msg
}
