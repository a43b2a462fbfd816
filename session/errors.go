package session

import (
	"errors"
	"strings"
)

// Failure kinds. Every error returned by Manager is an *Error whose Kind is
// one of these, so errors.Is(err, ErrValidation) and friends work.
var (
	ErrValidation         = errors.New("validation failed")
	ErrAuthRejected       = errors.New("authentication rejected")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrAlreadyInProgress  = errors.New("operation already in progress")
	ErrInvalidState       = errors.New("invalid session state")
	ErrStorage            = errors.New("credential storage failed")
)

// Error is a tagged session failure. Message is suitable for display.
type Error struct {
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("session ")
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind error, message string, err error) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}
