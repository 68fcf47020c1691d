package errors

import (
	"errors"
)

// UserError pairs a technical error with the message shown to the user
type UserError struct {
	Err     error
	UserMsg string
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Errors that can reach a user
var (
	ErrNotFound = &UserError{
		Err:     errors.New("not found"),
		UserMsg: "The requested record does not exist.",
	}

	ErrConflict = &UserError{
		Err:     errors.New("already exists"),
		UserMsg: "A channel with this id is already registered.",
	}
)

// Errors that are only logged
var (
	// ErrMembershipUnobservable is a probe failure that proves nothing about
	// membership: the bot was removed, is not an admin, the chat is gone or
	// the user cannot be resolved. Treated as non-membership.
	ErrMembershipUnobservable = errors.New("membership not observable")

	// ErrMembershipUnknown is any other probe failure (timeouts, transport).
	ErrMembershipUnknown = errors.New("membership unknown")

	// ErrUINoOp marks an edit or delete against UI state that is already
	// what we want. Always absorbed where it happens.
	ErrUINoOp = errors.New("message not modified")
)

// GetUserMessage extracts user-friendly message from error
func GetUserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) && userErr.UserMsg != "" {
		return userErr.UserMsg
	}
	// Default message for unexpected errors
	return "An unexpected error occurred. Please try again later."
}

// IsUINoOp reports whether err only says the UI was already in the wanted state
func IsUINoOp(err error) bool {
	return errors.Is(err, ErrUINoOp)
}
