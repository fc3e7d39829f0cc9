package proto

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the codec.
var (
	// ErrConnectionAborted is returned when the peer closed the connection
	// before sending a single byte.
	ErrConnectionAborted = errors.New("connection aborted by peer")
	// ErrMalformed is returned for short reads and impossible headers.
	ErrMalformed = errors.New("malformed message")
	// ErrTimeout is returned when the peer was too slow.
	ErrTimeout = errors.New("connection timed out")
	// ErrNoAck is returned to a sender when the daemon did not acknowledge the payload.
	ErrNoAck = errors.New("payload not acknowledged")
)

// ProtocolError describes a failed codec operation.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("proto: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a connection timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
