package proto

import (
	"bytes"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Flags is the request flag bitset.
type Flags uint32

const (
	// FlagQueryPID asks the daemon for its PID. Nothing is rendered.
	FlagQueryPID Flags = 1 << iota
	// FlagNoImage suppresses the image element.
	FlagNoImage
	// FlagNoBar suppresses the progress bar element.
	FlagNoBar
	// FlagIsNote requests a stacked notification instead of the OSD.
	FlagIsNote
)

// knownFlags masks the bits the daemon understands.
const knownFlags = FlagQueryPID | FlagNoImage | FlagNoBar | FlagIsNote

// Has reports whether all bits of flag are set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// String returns a compact, pipe separated representation.
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f.Has(FlagQueryPID) {
		parts = append(parts, "query-pid")
	}
	if f.Has(FlagNoImage) {
		parts = append(parts, "no-image")
	}
	if f.Has(FlagNoBar) {
		parts = append(parts, "no-bar")
	}
	if f.Has(FlagIsNote) {
		parts = append(parts, "note")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Kind is the kind of popup a message asks for.
type Kind int

const (
	// KindOSD is the single, always reused on-screen display.
	KindOSD Kind = iota
	// KindNote is a stacked notification window.
	KindNote
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindOSD:
		return "osd"
	case KindNote:
		return "note"
	default:
		return "unknown"
	}
}

// Message is a decoded request to display a popup.
//
// A Message is owned by exactly one component at a time. Whoever holds it
// last calls Release, which is safe to call more than once.
type Message struct {
	// ID correlates log lines for one message. It is not sent on the wire.
	ID ulid.ULID

	Flags       Flags
	Timeout     float64 // seconds, 0 = per-kind default
	Image       []byte  // NUL separated list of image paths
	Text        []byte  // UTF-8 with inline markup
	BarPart     uint32
	BarElements uint32

	// Silent skips the render sound. It is not sent on the wire.
	Silent bool

	released bool
}

// NewMessage builds a message for sending.
func NewMessage(flags Flags, text string, images ...string) *Message {
	m := &Message{
		ID:    ulid.Make(),
		Flags: flags,
		Text:  []byte(text),
	}
	if len(images) > 0 {
		m.Image = []byte(strings.Join(images, "\x00"))
	}
	return m
}

// SetBar sets the progress bar fraction.
func (m *Message) SetBar(part, elements uint32) {
	m.BarPart = part
	m.BarElements = elements
}

// Kind returns the popup kind requested by the message.
func (m *Message) Kind() Kind {
	if m.Flags.Has(FlagIsNote) {
		return KindNote
	}
	return KindOSD
}

// IsQuery reports whether the message is a PID query.
func (m *Message) IsQuery() bool {
	return m.Flags.Has(FlagQueryPID)
}

// ImagePaths splits the image payload. Empty entries are skipped.
func (m *Message) ImagePaths() []string {
	if len(m.Image) == 0 {
		return nil
	}
	var paths []string
	for _, p := range bytes.Split(m.Image, []byte{0}) {
		if len(p) > 0 {
			paths = append(paths, string(p))
		}
	}
	return paths
}

// Body returns the message text.
func (m *Message) Body() string {
	return string(m.Text)
}

// MaxTimeout is the longest timeout a message can ask for. Larger values
// are clamped to it.
const MaxTimeout = time.Duration(math.MaxInt64)

// TimeoutDuration converts the timeout to a duration. Zero, negative and
// non-finite values yield 0, meaning "use the default".
func (m *Message) TimeoutDuration() time.Duration {
	if m.Timeout <= 0 || math.IsNaN(m.Timeout) || math.IsInf(m.Timeout, 0) {
		return 0
	}
	if m.Timeout >= float64(MaxTimeout)/float64(time.Second) {
		return MaxTimeout
	}
	return time.Duration(m.Timeout * float64(time.Second))
}

// PayloadLen returns the combined payload size.
func (m *Message) PayloadLen() int {
	return len(m.Image) + len(m.Text)
}

// Header returns the wire header describing the message.
func (m *Message) Header() Header {
	return Header{
		Flags:       m.Flags,
		Timeout:     m.Timeout,
		ImageLen:    uint32(len(m.Image)),
		MessageLen:  uint32(len(m.Text)),
		BarPart:     m.BarPart,
		BarElements: m.BarElements,
	}
}

// Release drops the payload buffers. Calling it again, or on a nil message,
// is a no-op.
func (m *Message) Release() {
	if m == nil || m.released {
		return
	}
	m.Image = nil
	m.Text = nil
	m.released = true
}

// Released reports whether Release has been called.
func (m *Message) Released() bool {
	return m == nil || m.released
}
