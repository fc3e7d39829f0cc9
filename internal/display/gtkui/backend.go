package gtkui

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"github.com/diamondburned/gotk4/pkg/pango"

	"github.com/jmylchreest/thor/internal/display"
	"github.com/jmylchreest/thor/internal/proto"
	"github.com/jmylchreest/thor/internal/theme"
)

var errNoDisplay = errors.New("no display available")

// Backend implements display.Backend on top of a Runtime.
type Backend struct {
	rt      *Runtime
	monitor int
	logger  *slog.Logger

	mu       sync.Mutex
	sink     display.EventSink
	gdisplay *gdk.Display
	gmonitor *gdk.Monitor
	width    int
	height   int
	next     display.WindowID
	windows  map[display.WindowID]*window
	measure  *gtk.Label
	closed   chan struct{}
	lostOnce sync.Once
}

// NewBackend creates a backend drawing on the given monitor. Monitor 0 is
// the first monitor, 1 and up select a monitor by number.
func NewBackend(rt *Runtime, monitor int, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		rt:      rt,
		monitor: monitor,
		logger:  logger,
		windows: make(map[display.WindowID]*window),
		closed:  make(chan struct{}),
	}
}

// Open implements display.Backend.
func (b *Backend) Open(sink display.EventSink) error {
	var openErr error
	err := b.rt.Invoke(func() {
		d := gdk.DisplayGetDefault()
		if d == nil {
			openErr = errNoDisplay
			return
		}
		mon := b.pickMonitor(d)
		if mon == nil {
			openErr = fmt.Errorf("%w: no monitor", errNoDisplay)
			return
		}
		geom := mon.Geometry()

		d.ConnectClosed(func(isError bool) {
			b.lose(fmt.Errorf("display connection closed (error=%t)", isError))
		})

		b.mu.Lock()
		b.sink = sink
		b.gdisplay = d
		b.gmonitor = mon
		b.width, b.height = geom.Width(), geom.Height()
		b.measure = gtk.NewLabel("")
		b.mu.Unlock()

		b.logger.Info("gtk backend opened",
			"monitor", mon.Connector(),
			"width", geom.Width(),
			"height", geom.Height(),
		)
	})
	if err != nil {
		return err
	}
	if openErr != nil {
		return openErr
	}

	go func() {
		select {
		case <-b.rt.Done():
			b.lose(ErrStopped)
		case <-b.closed:
		}
	}()
	return nil
}

// pickMonitor returns the configured monitor, falling back to the first.
func (b *Backend) pickMonitor(d *gdk.Display) *gdk.Monitor {
	monitors := d.Monitors()
	if monitors == nil || monitors.NItems() == 0 {
		return nil
	}

	index := uint(0)
	if b.monitor > 0 {
		index = uint(b.monitor - 1)
	}
	if index >= monitors.NItems() {
		b.logger.Warn("configured monitor not available, using first",
			"configured", b.monitor,
			"available", monitors.NItems(),
		)
		index = 0
	}
	return wrapMonitor(monitors.Item(index))
}

// wrapMonitor wraps a list model item as a gdk.Monitor. gotk4 does not
// export its own wrapper; the layout matches its generated struct.
func wrapMonitor(obj *glib.Object) *gdk.Monitor {
	if obj == nil {
		return nil
	}
	type monitor struct {
		_ [0]func()
		*glib.Object
	}
	m := &monitor{Object: obj}
	return (*gdk.Monitor)(unsafe.Pointer(m))
}

// Close implements display.Backend.
func (b *Backend) Close() error {
	select {
	case <-b.closed:
		return nil
	default:
		close(b.closed)
	}

	b.mu.Lock()
	windows := make([]*window, 0, len(b.windows))
	for _, w := range b.windows {
		windows = append(windows, w)
	}
	clear(b.windows)
	b.sink = nil
	b.mu.Unlock()

	return b.rt.Invoke(func() {
		for _, w := range windows {
			w.destroy()
		}
	})
}

// Screen implements display.Backend.
func (b *Backend) Screen() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

// CreateWindow implements display.Backend.
func (b *Backend) CreateWindow(kind proto.Kind) (display.WindowID, error) {
	b.mu.Lock()
	b.next++
	id := b.next
	d, mon := b.gdisplay, b.gmonitor
	b.mu.Unlock()

	if d == nil {
		return 0, display.ErrNotOpen
	}

	var w *window
	err := b.rt.Invoke(func() {
		w = newWindow(b.rt.Application(), d, mon, id, kind, windowEvents{
			mapped:   func() { b.notify(func(s display.EventSink) { s.WindowMapped(id) }) },
			unmapped: func() { b.notify(func(s display.EventSink) { s.WindowUnmapped(id) }) },
		})
	})
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	b.windows[id] = w
	b.mu.Unlock()
	return id, nil
}

// DestroyWindow implements display.Backend.
func (b *Backend) DestroyWindow(id display.WindowID) error {
	b.mu.Lock()
	w, ok := b.windows[id]
	delete(b.windows, id)
	b.mu.Unlock()
	if !ok {
		return display.ErrUnknownWindow
	}
	return b.rt.Invoke(w.destroy)
}

// Configure implements display.Backend.
func (b *Backend) Configure(id display.WindowID, geom theme.Rect) error {
	return b.with(id, func(w *window) { w.configure(geom) })
}

// Draw implements display.Backend.
func (b *Backend) Draw(id display.WindowID, scene *display.Scene) error {
	return b.with(id, func(w *window) { w.draw(scene) })
}

// Map implements display.Backend. The window reports back through
// EventSink.WindowMapped once the compositor has shown it.
func (b *Backend) Map(id display.WindowID) error {
	return b.with(id, func(w *window) { w.win.SetVisible(true) })
}

// Unmap implements display.Backend.
func (b *Backend) Unmap(id display.WindowID) error {
	return b.with(id, func(w *window) { w.win.SetVisible(false) })
}

// MeasureText implements display.Backend with a Pango layout.
func (b *Backend) MeasureText(lines []display.Line, font string, maxWidth int) (int, int) {
	b.mu.Lock()
	label := b.measure
	b.mu.Unlock()
	if label == nil {
		return 0, 0
	}

	var width, height int
	err := b.rt.Invoke(func() {
		layout := label.CreatePangoLayout("")
		layout.SetMarkup(pangoMarkup(lines, font), -1)
		layout.SetWidth(maxWidth * pango.SCALE)
		layout.SetWrap(pango.WrapWordChar)
		width, height = layout.PixelSize()
	})
	if err != nil {
		b.logger.Debug("text measurement failed", "error", err)
		return 0, 0
	}
	return width, height
}

func (b *Backend) with(id display.WindowID, fn func(*window)) error {
	select {
	case <-b.closed:
		return display.ErrNotOpen
	default:
	}

	b.mu.Lock()
	w, ok := b.windows[id]
	b.mu.Unlock()
	if !ok {
		return display.ErrUnknownWindow
	}

	if err := b.rt.Invoke(func() { fn(w) }); err != nil {
		return errors.Join(display.ErrBackendLost, err)
	}
	return nil
}

func (b *Backend) notify(fn func(display.EventSink)) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()
	if sink != nil {
		fn(sink)
	}
}

// lose reports the loss of the display connection once.
func (b *Backend) lose(err error) {
	b.lostOnce.Do(func() {
		b.logger.Error("display connection lost", "error", err)
		b.notify(func(s display.EventSink) { s.BackendLost(err) })
	})
}
