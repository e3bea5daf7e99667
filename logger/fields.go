package logger

import "log/slog"

// Standard field keys. Use them consistently so logs can be queried.
const (
	KeySessionID  = "session_id"
	KeyClientIP   = "client_ip"
	KeyUsername   = "username"
	KeyCommand    = "command"
	KeyArg        = "arg"
	KeyState      = "state"
	KeyStatus     = "status"
	KeyPath       = "path"
	KeyBytes      = "bytes"
	KeyChecksum   = "checksum"
	KeyDuration   = "duration"
	KeyError      = "error"
	KeyDataAddr   = "data_addr"
	KeyListenAddr = "listen_addr"
)

// Err returns the error attribute for a log call
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "<nil>")
	}
	return slog.String(KeyError, err.Error())
}
