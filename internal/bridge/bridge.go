// Package bridge funnels asynchronous notifications into the daemon loop.
//
// Signal handlers, slot timers, the display thread and the D-Bus front-end
// all run outside the loop goroutine. They never touch daemon state; they
// post an Event and the loop acts on it.
package bridge

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/thor/internal/proto"
)

// DefaultBuffer is the default event channel capacity.
const DefaultBuffer = 64

// Kind discriminates events.
type Kind int

const (
	// EventTerminate requests a clean shutdown.
	EventTerminate Kind = iota + 1
	// EventReload requests a soft reload of config and themes.
	EventReload
	// EventTimeout reports that a slot timer fired.
	EventTimeout
	// EventConfigChanged reports a debounced change to a watched file.
	EventConfigChanged
	// EventBackendLost reports that the display connection is gone.
	EventBackendLost
	// EventIncoming carries a message from a front-end other than the socket.
	EventIncoming
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case EventTerminate:
		return "terminate"
	case EventReload:
		return "reload"
	case EventTimeout:
		return "timeout"
	case EventConfigChanged:
		return "config-changed"
	case EventBackendLost:
		return "backend-lost"
	case EventIncoming:
		return "incoming"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a single notification for the loop.
type Event struct {
	Kind Kind

	// Slot and Generation identify the timer for EventTimeout.
	Slot       int
	Generation uint64

	// Message is set for EventIncoming. Ownership passes to the receiver.
	Message *proto.Message

	// Path is the changed file for EventConfigChanged.
	Path string

	// Err explains EventBackendLost.
	Err error

	// Source names the poster, for logging.
	Source string
}

// Bridge is a buffered event channel with non-blocking and blocking posts.
type Bridge struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
	logger    *slog.Logger
}

// New creates a bridge with the given buffer size.
func New(buffer int, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bridge{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Events returns the channel the loop reads from.
func (b *Bridge) Events() <-chan Event {
	return b.events
}

// TryPost posts without blocking. It returns false if the buffer is full or
// the bridge is closed; the event is dropped in that case.
func (b *Bridge) TryPost(ev Event) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.events <- ev:
		return true
	default:
		b.dropped.Add(1)
		b.logger.Warn("event dropped, bridge full", "kind", ev.Kind, "source", ev.Source)
		return false
	}
}

// Post blocks until the event is accepted or the bridge is closed.
func (b *Bridge) Post(ev Event) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.events <- ev:
		return true
	case <-b.done:
		return false
	}
}

// Close stops accepting events. Pending events stay readable.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

// Done is closed once the bridge no longer accepts events.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Dropped returns the number of events rejected by TryPost.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}
