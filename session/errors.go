package session

import (
	"errors"
	"fmt"
)

var (
	errNoRefreshToken    = errors.New("no refresh credential")
	errSessionTerminated = errors.New("session terminated during refresh")
)

// AuthError is returned by Login and Register when the server rejects the request. Message is meant to be shown
// to the user.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// SessionExpiredError is returned when a call failed authentication and the session could not be renewed. The
// session has been terminated when the caller sees it. Err is the original failure of the call.
type SessionExpiredError struct {
	Err error
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session expired: %s", e.Err)
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Err
}
