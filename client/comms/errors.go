package comms

import (
	"errors"
	"fmt"

	"go_ftserve/networking/status"
)

var (
	// ErrLoginFailed is returned when the server rejects the credentials
	ErrLoginFailed = errors.New("login failed")
	// ErrUnknownCommand is returned when the server replies 502
	ErrUnknownCommand = errors.New("command not recognized by server")
	// ErrUnavailable is returned when the server replies 550
	ErrUnavailable = errors.New("requested action not taken")
	// ErrNotConnected is returned when a command is issued before Connect
	ErrNotConnected = errors.New("not connected")
)

// StatusError is an unexpected reply from the server
type StatusError struct {
	Want status.Code
	Got  status.Code
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected reply %s, expected %s", e.Got, e.Want)
}

// expect maps the reply to an error unless it is want
func expect(got, want status.Code) error {
	switch {
	case got == want:
		return nil
	case got == status.UnknownCommand:
		return ErrUnknownCommand
	case got == status.Unavailable:
		return ErrUnavailable
	case got == status.LoginFailed:
		return ErrLoginFailed
	}
	return &StatusError{Want: want, Got: got}
}
