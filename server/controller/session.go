package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"go_ftserve/logger"
	"go_ftserve/networking"
	"go_ftserve/networking/status"

	"github.com/google/uuid"
)

// State is the position of a session in the login and command lifecycle
type State int

const (
	StateGreeting State = iota
	StateAwaitingUsername
	StateAwaitingPassword
	StateCommandLoop
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateGreeting:
		return "greeting"
	case StateAwaitingUsername:
		return "awaiting_username"
	case StateAwaitingPassword:
		return "awaiting_password"
	case StateCommandLoop:
		return "command_loop"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session serves one client from accept to termination
type Session struct {
	id      string
	server  *Server
	ctrl    *networking.Conn
	workdir *workDir
	logger  *slog.Logger
	started time.Time

	state State
	user  string

	mu     sync.Mutex // Protects data and closed
	data   *networking.Conn
	closed bool
}

func newSession(srv *Server, ctrl *networking.Conn) *Session {
	id := uuid.New().String()
	return &Session{
		id:      id,
		server:  srv,
		ctrl:    ctrl,
		workdir: newWorkDir(srv.root),
		logger:  srv.logger.With(logger.KeySessionID, id, logger.KeyClientIP, ctrl.RemoteAddr()),
		started: time.Now(),
		state:   StateGreeting,
	}
}

// ID returns the unique session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.state
}

// Run drives the session until QUIT, a failed login, an I/O error or ctx ends
func (s *Session) Run(ctx context.Context) {
	s.server.metrics.SessionStarted()
	s.logger.Info("client connected")
	defer s.terminate()

	// Send greeting.
	if err := s.reply(status.Welcome); err != nil {
		s.logger.Warn("failed to send greeting", logger.Err(err))
		return
	}
	s.state = StateAwaitingUsername

	if !s.login() {
		return
	}
	s.commandLoop(ctx)
}

// Close closes the control connection and any open data connection
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.data != nil {
		s.data.Close()
	}
	s.ctrl.Close()
}

// terminate releases both connections. No I/O happens afterwards.
func (s *Session) terminate() {
	s.closeData()
	s.Close()
	s.state = StateTerminated
	s.server.metrics.SessionEnded()
	s.logger.Info("client disconnected", logger.KeyUsername, s.user, logger.KeyDuration, time.Since(s.started).String())
}

// login runs the username/password exchange. It returns true once the client may send commands.
func (s *Session) login() bool {
	msg, err := s.recvLoginMessage()
	if err != nil {
		s.logger.Info("connection lost during login", logger.KeyState, s.state.String(), logger.Err(err))
		return false
	}
	user, userOK := loginArgument(msg, networking.VerbUser)

	// Tell client we're ready for password.
	if err := s.reply(status.NeedPassword); err != nil {
		return false
	}
	s.state = StateAwaitingPassword

	msg, err = s.recvLoginMessage()
	if err != nil {
		s.logger.Info("connection lost during login", logger.KeyState, s.state.String(), logger.Err(err))
		return false
	}
	pass, passOK := loginArgument(msg, networking.VerbPass)

	authenticated := false
	if userOK && passOK {
		authenticated, err = s.server.auth.Authenticate(user, pass)
		if err != nil {
			s.logger.Error("credential lookup failed", logger.Err(err))
			authenticated = false
		}
	}
	s.server.metrics.RecordLogin(authenticated)

	if !authenticated {
		s.logger.Warn("authentication failed", logger.KeyUsername, user)
		s.reply(status.LoginFailed)
		return false
	}

	s.user = user
	s.logger = s.logger.With(logger.KeyUsername, user)
	if err := s.reply(status.LoginOK); err != nil {
		return false
	}
	s.state = StateCommandLoop
	s.logger.Info("user logged in")
	return true
}

// recvLoginMessage reads a login message. An oversized message counts as malformed, not as an I/O error.
func (s *Session) recvLoginMessage() (string, error) {
	msg, err := s.ctrl.RecvMessage()
	if errors.Is(err, networking.ErrMessageTooLong) {
		return "", nil
	}
	return msg, err
}

// loginArgument extracts the argument of "USER name" or "PASS secret"
func loginArgument(msg string, verb networking.Verb) (string, bool) {
	cmd, err := networking.ParseCommand(msg)
	if err != nil || cmd.Verb != verb {
		return "", false
	}
	return cmd.Arg, true
}

// commandLoop reads and executes commands until QUIT or a transport failure
func (s *Session) commandLoop(ctx context.Context) {
	for {
		msg, err := s.ctrl.RecvMessage()
		if errors.Is(err, networking.ErrMessageTooLong) {
			s.server.metrics.RecordCommand("", false)
			if s.reply(status.UnknownCommand) != nil {
				return
			}
			continue
		}
		if err != nil {
			s.logRecvError(ctx, err)
			return
		}

		cmd, err := networking.ParseCommand(msg)
		known := err == nil && cmd.Known()
		s.server.metrics.RecordCommand(string(cmd.Verb), known)
		if !known {
			s.logger.Debug("rejected command", logger.KeyCommand, msg)
			if s.reply(status.UnknownCommand) != nil {
				return
			}
			continue
		}

		s.logger.Debug("command received", logger.KeyCommand, string(cmd.Verb), logger.KeyArg, cmd.Arg)

		if cmd.Verb == networking.VerbQuit {
			s.reply(status.Goodbye)
			return
		}

		if err := s.reply(status.CommandOK); err != nil {
			return
		}
		if err := s.execute(ctx, cmd); err != nil {
			s.logger.Warn("aborting session", logger.KeyCommand, string(cmd.Verb), logger.Err(err))
			return
		}
	}
}

// execute performs the data handshake and runs the command. A returned error ends the session.
func (s *Session) execute(ctx context.Context, cmd networking.Command) error {
	data, err := s.openDataChannel(ctx)
	if err != nil {
		return err
	}
	defer s.closeData()

	return s.dispatch(ctx, cmd, data)
}

// reply sends a status code on the control connection
func (s *Session) reply(code status.Code) error {
	err := s.ctrl.SendStatus(code)
	if err != nil {
		s.logger.Warn("failed to send reply", logger.KeyStatus, uint32(code), logger.Err(err))
		return err
	}
	s.server.metrics.RecordReply(uint32(code))
	s.logger.Debug("reply sent", logger.KeyStatus, code.String())
	return nil
}

func (s *Session) logRecvError(ctx context.Context, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), ctx.Err() != nil, errors.Is(err, net.ErrClosed):
		s.logger.Debug("control connection closed")
	case errors.As(err, &netErr) && netErr.Timeout():
		s.logger.Info("control connection idle timeout")
	default:
		s.logger.Warn("control connection lost", logger.Err(err))
	}
}
