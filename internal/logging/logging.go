// Package logging sets up the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
	"path/filepath"
)

// Tag identifies daemon messages in syslog.
const Tag = "thord"

// Options selects the log sink.
type Options struct {
	// File appends to the given path instead of syslog.
	File string
	// Foreground logs to stderr. It wins over File.
	Foreground bool
	// Verbose enables debug messages.
	Verbose bool
}

// Sink is where log records end up.
func (o Options) Sink() string {
	switch {
	case o.Foreground:
		return "stderr"
	case o.File != "":
		return "file"
	default:
		return "syslog"
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Setup builds the logger described by opts. The returned closer releases
// the sink and must be called at exit.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	w, err := open(opts)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, w, nil
}

func open(opts Options) (io.WriteCloser, error) {
	switch opts.Sink() {
	case "stderr":
		return nopCloser{os.Stderr}, nil
	case "file":
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return f, nil
	default:
		w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, Tag)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to syslog: %w", err)
		}
		return w, nil
	}
}
