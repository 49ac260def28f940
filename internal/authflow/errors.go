package authflow

import (
	"errors"
	"time"
)

var (
	ErrInvalidPhone   = errors.New("please enter a valid phone number")
	ErrEmptyOTP       = errors.New("please enter the verification code")
	ErrInvalidOTP     = errors.New("the verification code must be 4 digits")
	ErrOTPExpired     = errors.New("the verification code has expired, please request a new one")
	ErrVerifyCooldown = errors.New("too many attempts, please wait before trying again")
	ErrResendCooldown = errors.New("please wait before requesting a new code")
	ErrMissingName    = errors.New("please enter your name")
	ErrInvalidEmail   = errors.New("invalid email format")
	ErrMissingToken   = errors.New("authentication response did not include a token")
	ErrWrongStep      = errors.New("this action is not available at the current step")
)

// Error is a flow rejection that was decided locally, without calling the API.
// RetryAfter is set for the cooldown errors.
type Error struct {
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func reject(err error) error { return &Error{Err: err} }

func cooldown(err error, d time.Duration) error { return &Error{Err: err, RetryAfter: d} }

// IsLocal reports whether err was raised by the flow itself rather than the API.
func IsLocal(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}
