package networking

import "errors"

var (
	// ErrMessageTooLong is returned when a control message exceeds the maximum size
	ErrMessageTooLong = errors.New("message exceeds maximum size")
	// ErrLineBreak is returned when sending a message that contains a line break
	ErrLineBreak = errors.New("message must not contain line breaks")
	// ErrEmptyCommand is returned when parsing a message without a verb
	ErrEmptyCommand = errors.New("empty command")
	// ErrArgumentWhitespace is returned when a command argument contains whitespace
	ErrArgumentWhitespace = errors.New("command argument must not contain whitespace")
)

// BindError means the listening socket could not be created
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return "could not bind listening socket on " + e.Addr + ": " + e.Err.Error()
}

func (e *BindError) Unwrap() error { return e.Err }

// ConnectError means an outbound connection was refused or timed out
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return "could not connect to " + e.Addr + ": " + e.Err.Error()
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DataConnError means the data channel handshake failed
type DataConnError struct {
	Addr string
	Err  error
}

func (e *DataConnError) Error() string {
	if e.Addr == "" {
		return "data connection failed: " + e.Err.Error()
	}
	return "data connection to " + e.Addr + " failed: " + e.Err.Error()
}

func (e *DataConnError) Unwrap() error { return e.Err }
