package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/jmylchreest/thor/internal/client"
	"github.com/jmylchreest/thor/internal/config"
)

// ErrAlreadyRunning is returned when another daemon owns the socket.
var ErrAlreadyRunning = errors.New("daemon already running")

// RunningError carries the PID of the daemon that owns the socket.
type RunningError struct {
	PID int
}

func (e *RunningError) Error() string {
	return fmt.Sprintf("%v (pid %d)", ErrAlreadyRunning, e.PID)
}

func (e *RunningError) Unwrap() error {
	return ErrAlreadyRunning
}

// Listen binds the daemon socket at path. The first daemon wins: if the
// path is in use by a live daemon, its PID is returned in a RunningError.
// A socket file left behind by a daemon that died is removed and the bind
// retried once.
func Listen(path string, logger *slog.Logger) (net.Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.EnsureDir(path); err != nil {
		return nil, err
	}

	l, err := net.Listen("unix", path)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, unix.EADDRINUSE) {
		return nil, fmt.Errorf("failed to bind socket: %w", err)
	}

	pid, qerr := client.New(path).QueryPID()
	if qerr == nil {
		return nil, &RunningError{PID: pid}
	}
	if !errors.Is(qerr, unix.ECONNREFUSED) && !errors.Is(qerr, unix.ENOENT) {
		return nil, fmt.Errorf("socket %s is in use: %w", path, qerr)
	}

	logger.Warn("removing stale socket", "path", path)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}
	l, err = net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to bind socket: %w", err)
	}
	return l, nil
}
