package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller may not act on a resource.
var ErrForbidden = errors.New("forbidden")

// Conflict reasons. They are wrapped in a *ConflictError.
var (
	ErrAlreadyDecided     = errors.New("request already decided")
	ErrRegistrationClosed = errors.New("registration closed")
	ErrLectureFull        = errors.New("lecture is full")
	ErrAlreadyRegistered  = errors.New("already registered")
	ErrNotRegistered      = errors.New("not registered")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid returns a *ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports an operation refused by the current state of a
// record. Reason is one of the Err* conflict sentinels.
type ConflictError struct {
	Reason error
	Detail string
}

func (e *ConflictError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Reason.Error()
}

func (e *ConflictError) Unwrap() error {
	return e.Reason
}

// Conflict returns a *ConflictError for reason. An empty format keeps the
// reason's own text.
func Conflict(reason error, format string, args ...any) error {
	ce := &ConflictError{Reason: reason}
	if format != "" {
		ce.Detail = fmt.Sprintf(format, args...)
	}
	return ce
}

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
