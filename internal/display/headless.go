package display

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-runewidth"

	"github.com/jmylchreest/thor/internal/proto"
	"github.com/jmylchreest/thor/internal/theme"
)

// Headless cell metrics used for text measurement.
const (
	HeadlessCellWidth  = 8
	HeadlessLineHeight = 16
)

// HeadlessWindow is a snapshot of a headless window.
type HeadlessWindow struct {
	ID     WindowID
	Kind   proto.Kind
	Geom   theme.Rect
	Mapped bool
	Draws  int
	Scene  *Scene
}

// Headless is a Backend without a display server. It keeps window state in
// memory and confirms map requests synchronously unless told otherwise.
type Headless struct {
	logger  *slog.Logger
	width   int
	height  int
	confirm atomic.Bool

	mu      sync.Mutex
	sink    EventSink
	next    WindowID
	windows map[WindowID]*HeadlessWindow
	lost    error
	open    bool
}

// NewHeadless creates a headless backend with a screen of the given size.
func NewHeadless(width, height int, logger *slog.Logger) *Headless {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Headless{
		logger:  logger,
		width:   width,
		height:  height,
		windows: make(map[WindowID]*HeadlessWindow),
	}
	h.confirm.Store(true)
	return h
}

// SetConfirm controls whether map and unmap requests are confirmed.
func (h *Headless) SetConfirm(confirm bool) {
	h.confirm.Store(confirm)
}

// Lose simulates the display server going away.
func (h *Headless) Lose(err error) {
	h.mu.Lock()
	h.lost = err
	sink := h.sink
	h.mu.Unlock()

	if sink != nil {
		sink.BackendLost(err)
	}
}

// Open implements Backend.
func (h *Headless) Open(sink EventSink) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = sink
	h.open = true
	h.lost = nil
	h.logger.Debug("headless backend opened", "width", h.width, "height", h.height)
	return nil
}

// Close implements Backend.
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.open = false
	h.sink = nil
	return nil
}

// Screen implements Backend.
func (h *Headless) Screen() (int, int) {
	return h.width, h.height
}

// CreateWindow implements Backend.
func (h *Headless) CreateWindow(kind proto.Kind) (WindowID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkLocked(); err != nil {
		return 0, err
	}
	h.next++
	h.windows[h.next] = &HeadlessWindow{ID: h.next, Kind: kind}
	return h.next, nil
}

// DestroyWindow implements Backend.
func (h *Headless) DestroyWindow(id WindowID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.windows, id)
	return nil
}

// Configure implements Backend.
func (h *Headless) Configure(id WindowID, geom theme.Rect) error {
	return h.update(id, func(w *HeadlessWindow) { w.Geom = geom })
}

// Draw implements Backend.
func (h *Headless) Draw(id WindowID, scene *Scene) error {
	return h.update(id, func(w *HeadlessWindow) {
		w.Scene = scene
		w.Draws++
	})
}

// Map implements Backend.
func (h *Headless) Map(id WindowID) error {
	if err := h.update(id, func(w *HeadlessWindow) { w.Mapped = true }); err != nil {
		return err
	}
	if sink := h.currentSink(); sink != nil && h.confirm.Load() {
		sink.WindowMapped(id)
	}
	return nil
}

// Unmap implements Backend.
func (h *Headless) Unmap(id WindowID) error {
	if err := h.update(id, func(w *HeadlessWindow) { w.Mapped = false }); err != nil {
		return err
	}
	if sink := h.currentSink(); sink != nil && h.confirm.Load() {
		sink.WindowUnmapped(id)
	}
	return nil
}

// MeasureText implements Backend using terminal cell widths.
func (h *Headless) MeasureText(lines []Line, _ string, maxWidth int) (int, int) {
	maxCells := max(maxWidth/HeadlessCellWidth, 1)
	width, rows := 0, 0
	for _, l := range lines {
		cells := runewidth.StringWidth(l.Text())
		wrapped := max((cells+maxCells-1)/maxCells, 1)
		rows += wrapped
		width = max(width, min(cells, maxCells))
	}
	return width * HeadlessCellWidth, rows * HeadlessLineHeight
}

// Window returns a snapshot of a window.
func (h *Headless) Window(id WindowID) (HeadlessWindow, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[id]
	if !ok {
		return HeadlessWindow{}, false
	}
	return *w, true
}

// Windows returns snapshots of all windows ordered by ID.
func (h *Headless) Windows() []HeadlessWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HeadlessWindow, 0, len(h.windows))
	for _, w := range h.windows {
		out = append(out, *w)
	}
	slices.SortFunc(out, func(a, b HeadlessWindow) int { return int(a.ID) - int(b.ID) })
	return out
}

// MappedCount returns the number of mapped windows.
func (h *Headless) MappedCount() int {
	n := 0
	for _, w := range h.Windows() {
		if w.Mapped {
			n++
		}
	}
	return n
}

func (h *Headless) update(id WindowID, fn func(*HeadlessWindow)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkLocked(); err != nil {
		return err
	}
	w, ok := h.windows[id]
	if !ok {
		return ErrUnknownWindow
	}
	fn(w)
	return nil
}

func (h *Headless) checkLocked() error {
	if h.lost != nil {
		return ErrBackendLost
	}
	if !h.open {
		return ErrNotOpen
	}
	return nil
}

func (h *Headless) currentSink() EventSink {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sink
}
