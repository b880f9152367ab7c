package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind int

const (
	// KindCollaborator is a persistence or messaging failure.
	KindCollaborator Kind = iota
	// KindValidation is a missing or malformed input field.
	KindValidation
	// KindPolicy is a spam, duplicate, rate-limit, profanity, ban or
	// timeout rejection.
	KindPolicy
	// KindUnauthorized means no authenticated identity was supplied.
	KindUnauthorized
	// KindForbidden covers non-admin callers, self-targeting and
	// admin-on-admin actions.
	KindForbidden
	// KindNotFound means the addressed user, post or report does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPolicy:
		return "policy"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	}
	return "collaborator"
}

// Error is the error type returned by every public forum operation.
// Message is always safe to show to the user; Err keeps the underlying
// cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Rejected returns a KindPolicy error.
func Rejected(format string, args ...any) *Error {
	return &Error{Kind: KindPolicy, Message: fmt.Sprintf(format, args...)}
}

// Unauthenticated returns a KindUnauthorized error.
func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthorized, Message: "authentication required"}
}

// Forbidden returns a KindForbidden error.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error for the named entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// Collaborator wraps a persistence or messaging failure. msg is what the
// user sees; err is only logged.
func Collaborator(msg string, err error) *Error {
	return &Error{Kind: KindCollaborator, Message: msg, Err: err}
}

// KindOf classifies err. Errors that are not *Error are collaborator
// failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCollaborator
}

// MessageOf returns the user-facing message of err. Raw errors never leak.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
