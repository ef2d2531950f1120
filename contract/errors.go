package contract

import (
	"errors"
	"fmt"
)

// ErrorKind classifies guard failures so callers can render precise
// messages without re-deriving context. Every guard failure aborts the
// whole operation; there is no catch-and-continue inside the registry.
type ErrorKind string

const (
	ErrNotFound                ErrorKind = "NOT_FOUND"
	ErrAlreadyExists           ErrorKind = "ALREADY_EXISTS"
	ErrUnauthorized            ErrorKind = "UNAUTHORIZED"
	ErrInvalidState            ErrorKind = "INVALID_STATE"
	ErrInvalidStatusTransition ErrorKind = "INVALID_STATUS_TRANSITION"
	ErrInvalidInput            ErrorKind = "INVALID_INPUT"
	ErrMismatch                ErrorKind = "MISMATCH"
	ErrIdenticalParties        ErrorKind = "IDENTICAL_PARTIES"
)

// RegistryError is the error type returned by all registry guards.
type RegistryError struct {
	Kind    ErrorKind
	Message string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func registryErrorf(kind ErrorKind, format string, args ...interface{}) *RegistryError {
	return &RegistryError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// HasErrorKind reports whether err (or anything it wraps) is a
// RegistryError of the given kind.
func HasErrorKind(err error, kind ErrorKind) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}
