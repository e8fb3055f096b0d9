package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUserAlreadyExists is the normal negative outcome of registering a taken username.
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrTokenNotFound   = errors.New("token not found")

	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable means the backing store could not be reached. It must
	// never be downgraded to an anonymous caller.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError reports malformed input rejected before any store call.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Msg)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Msg)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// IsNotFound reports whether err is any of the "absent" kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrTokenNotFound)
}

func IsStoreUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }
