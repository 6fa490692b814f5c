// Package errs provides the structured error taxonomy shared by the
// workflow engine, task queue, and HTTP surface. Errors preserve message and
// causal context while still implementing the standard error interface, and
// carry the error kind used to derive an HTTP status and response envelope.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one of the error categories from the error handling
// design: the caller-facing semantics that decide retry, status code, and
// whether the failure is surfaced as an error at all.
type Kind string

const (
	// KindValidation marks a malformed request body; surfaced as 422 with
	// field-level detail.
	KindValidation Kind = "validation_error"
	// KindNotFound marks an unknown workflow/task/conversation/prompt/kb.
	KindNotFound Kind = "not_found"
	// KindConflict marks a duplicate registration.
	KindConflict Kind = "conflict"
	// KindUpstream marks a language-model, embedding, or Redis call failure.
	KindUpstream Kind = "upstream_error"
	// KindTimeout marks any deadline exceeded.
	KindTimeout Kind = "timeout"
	// KindCancelled marks an explicit client or system cancellation. Not an
	// error to the caller of a streaming endpoint; a partial result is
	// returned instead.
	KindCancelled Kind = "cancelled"
	// KindInternal marks an unhandled failure.
	KindInternal Kind = "internal_error"
)

// Error is a structured failure carrying a Kind, a human-readable message,
// optional field-level issues, and an optional wrapped cause. Errors may be
// nested via Cause to retain diagnostics across retries.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldIssue
	Cause   *Error
}

// FieldIssue describes a single field-level validation failure.
type FieldIssue struct {
	Field   string
	Message string
	Code    string
}

// New constructs an Error of the given kind with the provided message.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = string(kind)
	}
	return &Error{Kind: kind, Message: message}
}

// Newf formats according to a format specifier and returns the result as an
// Error of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap constructs an Error of the given kind that wraps an underlying error,
// converting it into an Error chain with FromError. errors.As for *Error and
// Is work through Unwrap; a cause that is not already an *Error is replaced
// by an *Error copy of its message, so errors.Is against the original cause
// value (e.g. context.Canceled) does not match.
func Wrap(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: FromError(cause)}
}

// Wrapf formats a message and wraps cause, as Wrap does.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return Wrap(kind, fmt.Sprintf(format, args...), cause)
}

// Validation constructs a KindValidation error carrying field-level issues.
func Validation(message string, fields ...FieldIssue) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// FromError converts an arbitrary error into an Error chain, preserving an
// existing chain if one is already present.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: err.Error(), Cause: FromError(errors.Unwrap(err))}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying error to support errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// HTTPStatus maps the error kind to the HTTP status mapping from the
// external interfaces section: 422 VALIDATION_ERROR, 404 NOT_FOUND,
// 409 CONFLICT, 503 SERVICE_UNAVAILABLE, 504 TIMEOUT, 500 INTERNAL_ERROR.
// KindCancelled maps to 200 OK: cancellation is treated as a non-error
// rather than given a failure status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCancelled:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
