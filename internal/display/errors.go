package display

import (
	"errors"
	"fmt"
)

// Sentinel errors for display operations.
var (
	// ErrQueueFull is returned when a message is dropped because the
	// pending queue is at capacity.
	ErrQueueFull = errors.New("pending queue full")
	// ErrNoSlot is returned when every note slot is stacked.
	ErrNoSlot = errors.New("no free note slot")
	// ErrNothingToRender is returned for a message with no visible element.
	ErrNothingToRender = errors.New("nothing to draw")
	// ErrBackendLost reports that the display connection is gone.
	ErrBackendLost = errors.New("display backend lost")
	// ErrClosed is returned by a manager after Close.
	ErrClosed = errors.New("display manager closed")
	// ErrUnknownWindow is returned for a window ID the backend never created.
	ErrUnknownWindow = errors.New("unknown window")
	// ErrNotOpen is returned when the backend is used before Open.
	ErrNotOpen = errors.New("backend not open")
)

// BackendError wraps a failure reported by the rendering backend.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err means the backend cannot be used any more.
func IsFatal(err error) bool {
	return errors.Is(err, ErrBackendLost)
}

func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
