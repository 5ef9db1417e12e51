package engine

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable failure category. The first four are
// expected, user-facing outcomes; KindStorage means the operation failed
// without committing anything.
type Kind string

const (
	KindNotFound     Kind = "NOT_FOUND"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindInvalidState Kind = "INVALID_STATE"
	KindValidation   Kind = "VALIDATION"
	KindStorage      Kind = "STORAGE"
)

// Error is a lifecycle failure with a category the caller can branch on
// when rendering a message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure category from an error chain. Errors not
// produced by the engine report KindStorage, the only category that can
// carry an unexpected cause.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

func notFound(id int64) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("ticket %d does not exist", id)}
}

// errUnauthorized is deliberately uniform: it never reveals whether the
// target ticket exists.
func errUnauthorized() error {
	return &Error{Kind: KindUnauthorized, Msg: "you do not have permission to do that"}
}

func invalidState(msg string) error {
	return &Error{Kind: KindInvalidState, Msg: msg}
}

func validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func storage(op string, err error) error {
	return &Error{Kind: KindStorage, Msg: "failed to " + op, Err: err}
}
