package display

import (
	"github.com/jmylchreest/thor/internal/proto"
	"github.com/jmylchreest/thor/internal/theme"
)

// WindowID is an opaque backend window handle.
type WindowID uint64

// Backend draws popups on a display server.
//
// Map and Unmap return once the request is sent. The display server's
// confirmation arrives later through EventSink, possibly from another
// goroutine. Methods are only called from the goroutine that owns the
// Manager.
type Backend interface {
	// Open connects to the display server. Events are reported to sink
	// until Close returns.
	Open(sink EventSink) error
	Close() error

	// Screen returns the size of the output popups are placed on.
	Screen() (width, height int)

	CreateWindow(kind proto.Kind) (WindowID, error)
	DestroyWindow(id WindowID) error

	// Configure moves and resizes a window.
	Configure(id WindowID, geom theme.Rect) error
	// Draw replaces the contents of a window.
	Draw(id WindowID, scene *Scene) error
	Map(id WindowID) error
	Unmap(id WindowID) error

	// MeasureText returns the size of lines set in font, wrapped at maxWidth.
	MeasureText(lines []Line, font string, maxWidth int) (width, height int)
}

// EventSink receives asynchronous display server events.
// Implementations must be safe to call from any goroutine.
type EventSink interface {
	WindowMapped(id WindowID)
	WindowUnmapped(id WindowID)
	BackendLost(err error)
}

// Scene is everything a backend needs to draw one popup. All rectangles are
// relative to the window origin.
type Scene struct {
	Kind   proto.Kind
	Theme  *theme.Theme
	Width  int
	Height int

	Image *ImageElement
	Bar   *BarElement
	Text  *TextElement
}

// ImageElement places a picture. Path is empty when only the theme's
// picture surface is drawn.
type ImageElement struct {
	Box  theme.Rect
	Fit  theme.Rect // Scaled image inside Box, aspect ratio preserved
	Path string
}

// BarElement places the progress bar.
type BarElement struct {
	Box      theme.Rect
	Fraction float64
}

// TextElement places the message text.
type TextElement struct {
	Box   theme.Rect
	Lines []Line
}
