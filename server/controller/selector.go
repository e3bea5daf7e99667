package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go_ftserve/auth"
	"go_ftserve/fileio"
	"go_ftserve/listing"
	"go_ftserve/logger"
	"go_ftserve/metrics"
	"go_ftserve/networking"
)

// Server accepts control connections and runs one session goroutine per client
type Server struct {
	auth           auth.Authenticator
	root           string
	dataPort       int
	chunkSize      int
	queue          int
	checksum       fileio.Checksum
	factory        fileio.IOFactory
	listing        listing.Provider
	readTimeout    time.Duration
	writeTimeout   time.Duration
	connectTimeout time.Duration
	dscp           int
	logger         *slog.Logger
	metrics        *metrics.Metrics

	mu       sync.Mutex
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

// New creates a server checking logins against authenticator
func New(authenticator auth.Authenticator, opts ...Option) (*Server, error) {
	if authenticator == nil {
		return nil, errors.New("authenticator is required")
	}
	s := &Server{
		auth:     authenticator,
		sessions: make(map[*Session]struct{}),
	}
	defaults(s)
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = logger.L()
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, fmt.Errorf("invalid root %q: %w", s.root, err)
	}
	// Check path validity.
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid root folder: %s is not a directory", root)
	}
	s.root = root

	return s, nil
}

// ListenAndServe binds addr and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := networking.Listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done or accept fails.
// Live sessions are closed and waited for before it returns.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Close the listener when the context ends.
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	s.logger.Info("listening", logger.KeyListenAddr, l.Addr().String(), logger.KeyPath, s.root)

	var err error
	for {
		// Handle incoming connection.
		var conn *networking.Conn
		conn, err = networking.Accept(l)
		if err != nil {
			var netErr net.Error
			if ctx.Err() == nil && errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn("failed to establish incoming connection", logger.Err(err))
				continue
			}
			break
		}

		conn.ReadTimeout = s.readTimeout
		conn.WriteTimeout = s.writeTimeout

		sess := newSession(s, conn)
		s.track(sess)
		s.logger.Debug("session started", logger.KeySessionID, sess.ID(), logger.KeyClientIP, conn.RemoteAddr())
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(sess)
			sess.Run(ctx)
			s.logger.Debug("session finished", logger.KeySessionID, sess.ID(), logger.KeyState, sess.State().String())
		}()
	}

	s.closeSessions()
	s.wg.Wait()

	if ctx.Err() != nil {
		s.logger.Info("server stopped")
		return nil
	}
	return err
}

// ActiveSessions returns the number of running sessions
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Root returns the absolute directory sessions are confined to
func (s *Server) Root() string {
	return s.root
}

func (s *Server) track(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess] = struct{}{}
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
}

// closeSessions closes every live control connection so blocked sessions return
func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		sess.Close()
	}
}
