// Package engineerr defines the error kinds shared across the feature-learning
// engine. Every fallible operation in internal/ returns either a plain wrapped
// error (for truly local, unrecoverable bugs) or an *Error carrying one of the
// kinds below, so callers can branch on errors.Is/errors.As instead of string
// matching.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react differently to
// different failure modes (e.g. the command server maps Kind to a response
// shape).
type Kind string

const (
	// InvalidArgument covers schema/column not found, mismatched lengths,
	// out-of-bounds access, unknown aggregation, null join key.
	InvalidArgument Kind = "InvalidArgument"
	// SchemaViolation covers upper_ts < ts, unit mismatch on a same-units
	// operation.
	SchemaViolation Kind = "SchemaViolation"
	// NumericalFailure covers a 3x3 solve residual too large, or NaN
	// weights that did not come from an avg-null corner case.
	NumericalFailure Kind = "NumericalFailure"
	// StorageFull covers a memmap pool that cannot grow.
	StorageFull Kind = "StorageFull"
	// Cancelled covers cooperative cancellation of a fit.
	Cancelled Kind = "Cancelled"
	// IoError covers file, socket, and database I/O failures.
	IoError Kind = "IoError"
	// NotFitted covers transform/score called before fit.
	NotFitted Kind = "NotFitted"
	// FingerprintMismatch covers a cached artifact incompatible with new
	// data.
	FingerprintMismatch Kind = "FingerprintMismatch"
)

// Error is a one-line English message plus a stable Kind tag.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an *Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an *Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and message to an underlying cause, preserving it for
// errors.Unwrap/errors.Is.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or "" if err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
