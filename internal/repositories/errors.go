package repositories

import (
	"errors"
	"fmt"
)

// ErrorKind categorises store failures for service-level translation.
type ErrorKind string

const (
	ErrorKindUnknown     ErrorKind = "unknown"
	ErrorKindNotFound    ErrorKind = "not_found"
	ErrorKindConflict    ErrorKind = "conflict"
	ErrorKindUnavailable ErrorKind = "unavailable"
)

// StoreError is the RepositoryError shared by the memory, redis and postgres stores.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

var _ RepositoryError = (*StoreError)(nil)

// NewStoreError wraps err with the given kind. A nil err still yields an error carrying the kind.
func NewStoreError(op string, kind ErrorKind, err error) *StoreError {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &StoreError{Op: op, Kind: kind, Err: err}
}

// NotFound is a shorthand for NewStoreError(op, ErrorKindNotFound, ...).
func NotFound(op, format string, args ...any) *StoreError {
	return NewStoreError(op, ErrorKindNotFound, fmt.Errorf(format, args...))
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap exposes the underlying error.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StoreError) IsNotFound() bool    { return e != nil && e.Kind == ErrorKindNotFound }
func (e *StoreError) IsConflict() bool    { return e != nil && e.Kind == ErrorKindConflict }
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Kind == ErrorKindUnavailable }
