// Package logger is a thin structured logging layer over log/slog shared by
// the server and the client.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration
type Config struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

var (
	mu      sync.RWMutex
	level   = new(slog.LevelVar)
	slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	logFile *os.File
)

// Init configures the global logger
func Init(cfg Config) error {
	var out io.Writer
	var file *os.File

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		out = f
		file = f
	}

	InitWithWriter(out, cfg.Level, cfg.Format)

	mu.Lock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = file
	mu.Unlock()
	return nil
}

// InitWithWriter sends log output to w. Used by tests.
func InitWithWriter(w io.Writer, lvl, format string) {
	SetLevel(lvl)

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	slogger = slog.New(handler)
	mu.Unlock()
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		level.Set(slog.LevelDebug)
	case "INFO":
		level.Set(slog.LevelInfo)
	case "WARN":
		level.Set(slog.LevelWarn)
	case "ERROR":
		level.Set(slog.LevelError)
	}
}

// L returns the global logger
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// With returns a logger with pre-bound fields
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }
