package server

import (
	"context"
	"errors"
	"net"
	"strconv"

	"go_ftserve/logger"
	"go_ftserve/networking"
)

var errSessionClosed = errors.New("session closed")

// openDataChannel waits for the client's ready signal and connects back to its data port
func (s *Session) openDataChannel(ctx context.Context) (*networking.Conn, error) {
	if err := s.ctrl.WaitReady(); err != nil {
		return nil, &networking.DataConnError{Err: err}
	}

	ip := s.ctrl.RemoteIP()
	if ip == nil {
		return nil, &networking.DataConnError{Err: errors.New("unknown client address")}
	}
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(s.server.dataPort))

	dialer := networking.Dialer{Timeout: s.server.connectTimeout, DSCP: s.server.dscp}
	data, err := dialer.Dial(ctx, addr)
	if err != nil {
		return nil, &networking.DataConnError{Addr: addr, Err: err}
	}
	data.ReadTimeout = s.server.readTimeout
	data.WriteTimeout = s.server.writeTimeout

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		data.Close()
		return nil, &networking.DataConnError{Addr: addr, Err: errSessionClosed}
	}
	s.data = data

	s.logger.Debug("data connection established", logger.KeyDataAddr, addr)
	return data, nil
}

// closeData closes the current data connection if there is one
func (s *Session) closeData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		s.data.Close()
		s.data = nil
	}
}
