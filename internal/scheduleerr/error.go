// Package scheduleerr classifies failures into the taxonomy the request
// processor and stream worker use to decide whether a failure becomes a
// structured result envelope or triggers a transport-level retry.
package scheduleerr

import (
	"errors"
	"fmt"
)

// Kind names a failure category. These values are the exact short kinds
// that appear as the prefix of a result envelope's "error" field.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindInfeasible Kind = "infeasible"
	KindTimeout    Kind = "timeout"
	KindSolver     Kind = "solver_error"
	KindTransport  Kind = "transport_error"
	KindFatal      Kind = "fatal"
)

// Error wraps an underlying error with a Kind so callers can branch on the
// failure category without string-matching the message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New creates an Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that carries an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Error implements the "<short kind>: <message>" format spec §4.3 requires
// for a failure result envelope's error field.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// As reports whether err is (or wraps) a *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
