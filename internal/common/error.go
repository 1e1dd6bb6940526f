// Package common defines shared constants, sentinel errors and small helpers
// used across the groupledger server. Callers should use errors.Is to match
// the sentinel values; services wrap them with a human readable reason.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	// ErrorCodeCollision reports a generated code that hit a unique constraint.
	ErrorCodeCollision = errors.New("generated code already in use")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Request taxonomy. The transport maps each of these to one status code.
	ErrorValidation       = errors.New("validation error")
	ErrorUnauthenticated  = errors.New("unauthenticated")
	ErrorForbidden        = errors.New("forbidden")
	ErrorConflict         = errors.New("conflict")
	ErrorGone             = errors.New("gone")
	ErrorTooLarge         = errors.New("payload too large")
	ErrorUnsupportedMedia = errors.New("unsupported media type")
	ErrorUnsupported      = errors.New("not supported in current configuration")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// DomainError carries a caller-visible message on top of a taxonomy sentinel.
// errors.Is(err, common.ErrorConflict) still matches through Unwrap.
type DomainError struct {
	Kind    error
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Kind }

// NewError returns a DomainError of the given kind.
func NewError(kind error, msg string) error {
	return &DomainError{Kind: kind, Message: msg}
}

// Message returns the caller-visible message of err. For errors that are not
// DomainErrors the sentinel text is returned, or "" when err is not classified.
func Message(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	for _, k := range []error{
		ErrorValidation, ErrorUnauthenticated, ErrorForbidden, ErrorNotFound,
		ErrorConflict, ErrorGone, ErrorTooLarge, ErrorUnsupportedMedia, ErrorUnsupported,
	} {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return ""
}
