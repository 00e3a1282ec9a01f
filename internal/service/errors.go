package service

import (
	"errors"
	"fmt"
)

// Error kinds.  Every error returned by the service wraps exactly one of
// them, so callers branch with errors.Is and read the message from Error.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrForbidden          = errors.New("forbidden")
	ErrPersistence        = errors.New("persistence error")
)

// Error is a user-facing failure: a kind plus a message that is safe to
// return to the client.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Messages shared with API clients.
const (
	msgParkingMissing    = "The parking does not exist."
	msgNoSpots           = "No parking spots are available for the specified date range."
	msgPrecondition      = "The search preconditions were not met."
	msgPersistence       = "database error"
	msgReservationAbsent = "The record with ID %d does not exist"
)
