package domain

import (
	"errors"
	"fmt"
)

// Error kinds returned by the engine. Wrap them with Errorf so callers can
// match with errors.Is while still getting a readable message.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
)

// Errorf wraps kind with a formatted message. The kind text is not repeated
// in Error(); the message is what callers show to users.
func Errorf(kind error, format string, args ...any) error {
	return kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

type kindError struct {
	kind error
	msg  string
}

func (e kindError) Error() string { return e.msg }

func (e kindError) Unwrap() error { return e.kind }
