package errs

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("invalid input")
var ErrState = errors.New("invalid state")
var ErrAuthorization = errors.New("not authorized")
var ErrNotFound = errors.New("not found")

// ErrClosed is returned once a session has shut down.
var ErrClosed = errors.New("session closed")

type Code string

const (
	CodeValidation    Code = "ValidationError"
	CodeState         Code = "StateError"
	CodeAuthorization Code = "AuthorizationError"
	CodeNotFound      Code = "NotFoundError"
	CodeInternal      Code = "InternalError"
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func State(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}

func Authorization(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthorization, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// CodeOf maps an error onto the code sent back to the requesting client.
func CodeOf(err error) Code {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrState):
		return CodeState
	case errors.Is(err, ErrAuthorization):
		return CodeAuthorization
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}
