// Package fverrors implements the error taxonomy of the FamilyVault core
// (see spec §7). Every boundary — managers, the C ABI, network RPC — maps
// its failures onto this closed set of Kinds so that callers can branch on
// cause without parsing message text, and so the C ABI can fill in its
// fixed error-code enum.
package fverrors

import (
	"errors"
	"fmt"
)

// Kind mirrors the C ABI error enum exactly.
type Kind int

const (
	OK Kind = iota
	InvalidArgument
	Database
	Io
	NotFound
	AlreadyExists
	AuthFailed
	Network
	Busy
	Internal
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "OK"
	case InvalidArgument:
		return "InvalidArgument"
	case Database:
		return "Database"
	case Io:
		return "Io"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case AuthFailed:
		return "AuthFailed"
	case Network:
		return "Network"
	case Busy:
		return "Busy"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is a Kind-tagged error carrying the operation that failed and the
// underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a Kind-tagged error with no wrapped cause.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap tags err with kind and the operation during which it occurred.
// Wrap(kind, op, nil) returns a true nil error interface, so it is safe to
// use as a terminal `return fverrors.Wrap(...)` even when err might be nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal for errors
// that did not originate from this package.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err (or a wrapped cause) carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
