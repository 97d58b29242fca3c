package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindNotFound          ErrorKind = "not_found"
	KindPersistence       ErrorKind = "persistence"
)

// Sentinels for errors.Is checks. Every *Error matches the sentinel of its kind.
var (
	ErrValidation        = errors.New("validation error")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrPersistence       = errors.New("persistence error")
)

// Error is the single error type returned by the service layer.
// Msg is safe to show to the user verbatim; Err carries the cause for logs.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return e.Msg + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels. A NotFound error is also a validation
// failure: it is detected before any write happens.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation || e.Kind == KindNotFound
	case ErrInsufficientFunds:
		return e.Kind == KindInsufficientFunds
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPersistence:
		return e.Kind == KindPersistence
	}
	return false
}

// Message returns the user-facing part of the error.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Validation builds a validation error.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds an error for a missing or foreign record.
func NotFound(op, what, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf("%s %s not found", what, id)}
}

// InsufficientFunds reports a payment larger than the available balance.
func InsufficientFunds(op string, available, requested decimal.Decimal) *Error {
	return &Error{
		Kind: KindInsufficientFunds,
		Op:   op,
		Msg:  fmt.Sprintf("insufficient funds: balance %s, requested %s", available.StringFixed(2), requested.StringFixed(2)),
	}
}

// Persistence wraps a backend failure.
func Persistence(op, msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsPersistence keeps classified errors as they are and wraps anything else
// as a persistence failure.
func AsPersistence(op, msg string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	return Persistence(op, msg, err)
}
