package server

import (
	"context"

	"go_ftserve/logger"
	"go_ftserve/networking"
	"go_ftserve/networking/status"
)

// dispatch runs an accepted command over an established data connection.
// Only control connection failures are returned.
func (s *Session) dispatch(ctx context.Context, cmd networking.Command, data *networking.Conn) error {
	switch cmd.Verb {
	case networking.VerbList:
		return s.handleList(ctx, cmd, data)
	case networking.VerbPrintDir:
		return s.sendListing(data, []byte(s.workdir.Path()+"\n"))
	case networking.VerbGet:
		return s.handleGet(ctx, cmd, data)
	case networking.VerbPut:
		return s.handlePut(cmd, data)
	case networking.VerbChangeDir:
		s.handleChangeDir(cmd)
		return nil
	default:
		// USER and PASS after login are acknowledged and ignored.
		return nil
	}
}

// handleList sends the listing of the working directory, or of the directory named by the argument
func (s *Session) handleList(ctx context.Context, cmd networking.Command, data *networking.Conn) error {
	dir := s.workdir.Real()
	if cmd.Arg != "" {
		var err error
		if dir, err = s.workdir.Resolve(cmd.Arg); err != nil {
			s.logger.Info("invalid listing path", logger.KeyArg, cmd.Arg, logger.Err(err))
			s.server.metrics.RecordTransfer("listing", false)
			return s.reply(status.Unavailable)
		}
	}

	content, err := s.server.listing.List(ctx, dir)
	if err != nil {
		s.logger.Warn("listing failed", logger.KeyPath, dir, logger.Err(err))
		s.server.metrics.RecordTransfer("listing", false)
		return s.reply(status.Unavailable)
	}
	return s.sendListing(data, content)
}

func (s *Session) handleGet(ctx context.Context, cmd networking.Command, data *networking.Conn) error {
	path, err := s.workdir.Resolve(cmd.Arg)
	if err != nil || cmd.Arg == "" {
		s.logger.Info("invalid file requested", logger.KeyArg, cmd.Arg, logger.Err(err))
		s.server.metrics.RecordTransfer("send", false)
		return s.reply(status.Unavailable)
	}
	s.logger.Info("client requested file", logger.KeyPath, path)
	return s.sendFile(ctx, data, path)
}

// handlePut receives a file when the client reports it could open the source
func (s *Session) handlePut(cmd networking.Command, data *networking.Conn) error {
	code, err := s.ctrl.RecvStatus()
	if err != nil {
		return err
	}
	if code == status.Unavailable {
		s.logger.Info("client could not open file for upload", logger.KeyArg, cmd.Arg)
		return nil
	}

	path, err := s.workdir.Resolve(cmd.Arg)
	if err != nil || cmd.Arg == "" {
		s.logger.Info("invalid upload destination", logger.KeyArg, cmd.Arg, logger.Err(err))
		s.discard(data)
	} else {
		s.receiveFile(data, path)
	}
	data.Close()

	code, err = s.ctrl.RecvStatus()
	if err != nil {
		return err
	}
	s.logger.Debug("upload finished", logger.KeyPath, path, logger.KeyStatus, code.String())
	return nil
}

// handleChangeDir moves the session working directory. Failures leave it unchanged.
func (s *Session) handleChangeDir(cmd networking.Command) {
	if cmd.Arg == "" {
		s.logger.Info("change directory without argument")
		return
	}
	if err := s.workdir.Change(cmd.Arg); err != nil {
		s.logger.Info("failed to change directory", logger.KeyArg, cmd.Arg, logger.Err(err))
		return
	}
	s.logger.Debug("changed directory", logger.KeyPath, s.workdir.Path())
}
