package server

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go_ftserve/config"
	"go_ftserve/constants"
	"go_ftserve/fileio"
	"go_ftserve/listing"
	"go_ftserve/metrics"
)

// Option configures a Server
type Option func(*Server) error

// WithRoot sets the directory sessions start in and are confined to
func WithRoot(dir string) Option {
	return func(s *Server) error {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("invalid root %q: %w", dir, err)
		}
		s.root = abs
		return nil
	}
}

// WithDataPort sets the client port the server connects back to
func WithDataPort(port int) Option {
	return func(s *Server) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid data port %d", port)
		}
		s.dataPort = port
		return nil
	}
}

// WithChunkSize sets the bytes per data connection send/recv call
func WithChunkSize(size int) Option {
	return func(s *Server) error {
		if size <= 0 {
			return fmt.Errorf("invalid chunk size %d", size)
		}
		s.chunkSize = size
		return nil
	}
}

// WithQueue sets how many file chunks are buffered between disk and socket
func WithQueue(n int) Option {
	return func(s *Server) error {
		if n <= 0 {
			return fmt.Errorf("invalid queue length %d", n)
		}
		s.queue = n
		return nil
	}
}

// WithChecksum selects the digest logged for received files
func WithChecksum(c fileio.Checksum) Option {
	return func(s *Server) error {
		s.checksum = c
		return nil
	}
}

// WithIOFactory sets how files are read and written
func WithIOFactory(f fileio.IOFactory) Option {
	return func(s *Server) error {
		s.factory = f
		return nil
	}
}

// WithListing sets the listing provider used by SLS
func WithListing(p listing.Provider) Option {
	return func(s *Server) error {
		s.listing = p
		return nil
	}
}

// WithTimeouts bounds control/data reads, writes and the data connect. Zero disables a timeout.
func WithTimeouts(read, write, connect time.Duration) Option {
	return func(s *Server) error {
		s.readTimeout = read
		s.writeTimeout = write
		s.connectTimeout = connect
		return nil
	}
}

// WithDSCP marks data connections with the given DSCP value
func WithDSCP(dscp int) Option {
	return func(s *Server) error {
		s.dscp = dscp
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = l
		return nil
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

// OptionsFromConfig translates loaded settings into options
func OptionsFromConfig(cfg *config.Server) ([]Option, error) {
	checksum, err := fileio.ParseChecksum(cfg.Checksum)
	if err != nil {
		return nil, err
	}
	provider, err := listing.New(cfg.Listing)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithRoot(cfg.Root),
		WithDataPort(cfg.DataPort),
		WithChunkSize(cfg.ChunkSize),
		WithQueue(cfg.Queue),
		WithChecksum(checksum),
		WithIOFactory(fileio.NewFactory(cfg.Compress)),
		WithListing(provider),
		WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, cfg.ConnectTimeout),
		WithDSCP(cfg.DSCP),
	}, nil
}

func defaults(s *Server) {
	s.root = "."
	s.dataPort = constants.DEFAULT_DATA_PORT
	s.chunkSize = constants.DEFAULT_CHUNK_SIZE
	s.queue = constants.FILE_WRITE_QUEUE
	s.checksum = fileio.ChecksumNone
	s.factory = new(fileio.BufferedFactory)
	s.listing = new(listing.NativeProvider)
	s.connectTimeout = constants.DEFAULT_CONNECT_TIMEOUT
}
