package credential

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced by the credential service.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindStoreUnavailable Kind = "store_unavailable"
	KindUnauthenticated  Kind = "unauthenticated"
)

// Error carries a stable kind and a message that is safe to show to callers.
// Messages must never include secret material.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError reports malformed input.
func ValidationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing target or one not owned by the caller.
func NotFoundError(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a mutation invalidated by concurrent state.
func ConflictError(err error, format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Err: err}
}

// StoreUnavailableError reports an unreachable or failing persistence layer.
func StoreUnavailableError(err error, format string, args ...any) error {
	return &Error{Kind: KindStoreUnavailable, Message: fmt.Sprintf(format, args...), Err: err}
}

// UnauthenticatedError reports a rejected credential.
func UnauthenticatedError(format string, args ...any) error {
	return &Error{Kind: KindUnauthenticated, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or an empty kind for untyped errors.
func KindOf(err error) Kind {
	var credErr *Error
	if errors.As(err, &credErr) && credErr != nil {
		return credErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the caller-safe message of err.
func Message(err error) string {
	var credErr *Error
	if errors.As(err, &credErr) && credErr != nil {
		return credErr.Message
	}
	if err == nil {
		return ""
	}
	return "internal error"
}
