package domain

import (
	"errors"
	"fmt"
)

// Failure categories shared by every workflow. Call sites wrap them with
// fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrPrecondition      = errors.New("precondition failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("concurrent modification")
	ErrPersistence       = errors.New("persistence failure")
	ErrRateLimited       = errors.New("rate limit exceeded")
)

// ErrUnauthenticated is an authorization failure raised before an identity
// is known.
var ErrUnauthenticated = fmt.Errorf("%w: authentication required", ErrForbidden)

type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindUnauthenticated   ErrorKind = "UNAUTHORIZED"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindPrecondition      ErrorKind = "PRECONDITION_FAILED"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindConflict          ErrorKind = "CONFLICT"
	KindPersistence       ErrorKind = "PERSISTENCE_ERROR"
	KindRateLimited       ErrorKind = "RATE_LIMITED"
	KindInternal          ErrorKind = "INTERNAL_ERROR"
)

// KindOf classifies err. Order matters: ErrUnauthenticated also matches
// ErrForbidden.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindInternal
	}
}
