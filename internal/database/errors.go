package database

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable matches every StoreError: callers that only care whether
// the store could serve them check errors.Is(err, ErrUnavailable).
var ErrUnavailable = errors.New("store unavailable")

// ErrNotConfigured is returned by Open when no DSN is set.
var ErrNotConfigured = errors.New("store not configured")

// ErrorKind classifies store failures at the adapter boundary.
type ErrorKind int

const (
	ConnectionError ErrorKind = iota + 1
	TimeoutError
	SchemaError
	WriteError
	QueryError
)

func (k ErrorKind) String() string {
	switch k {
	case ConnectionError:
		return "connection"
	case TimeoutError:
		return "timeout"
	case SchemaError:
		return "schema"
	case WriteError:
		return "write"
	case QueryError:
		return "query"
	default:
		return "unknown"
	}
}

// StoreError is the only error type returned by MessageStore operations.
type StoreError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrUnavailable }

// newError wraps err as a StoreError. Deadline overruns become TimeoutError
// regardless of the requested kind, except for schema rejections.
func newError(kind ErrorKind, op string, err error) *StoreError {
	var se *StoreError
	if errors.As(err, &se) {
		return se
	}
	if kind != SchemaError && errors.Is(err, context.DeadlineExceeded) {
		kind = TimeoutError
	}
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of a StoreError, or 0 for anything else.
func KindOf(err error) ErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
