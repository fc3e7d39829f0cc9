package display

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/thor/internal/bridge"
	"github.com/jmylchreest/thor/internal/config"
	"github.com/jmylchreest/thor/internal/proto"
	"github.com/jmylchreest/thor/internal/theme"
)

// Outcome says what Show did with a message.
type Outcome int

const (
	OutcomeDropped Outcome = iota
	OutcomeRendered
	OutcomeQueued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRendered:
		return "rendered"
	case OutcomeQueued:
		return "queued"
	default:
		return "dropped"
	}
}

// Poster is the part of the event bridge the manager posts to.
type Poster interface {
	Post(ev bridge.Event) bool
	TryPost(ev bridge.Event) bool
}

// ThemeSet returns the theme for a popup kind.
type ThemeSet interface {
	Theme(kind proto.Kind) *theme.Theme
}

// Themes is a ThemeSet backed by a map. Missing kinds use the bundled
// default theme.
type Themes map[proto.Kind]*theme.Theme

var defaultTheme = sync.OnceValue(theme.NewDefaultTheme)

// Theme implements ThemeSet.
func (t Themes) Theme(kind proto.Kind) *theme.Theme {
	if th := t[kind]; th != nil {
		return th
	}
	return defaultTheme()
}

// Options configures a Manager.
type Options struct {
	Config *config.DaemonConfig
	Themes ThemeSet
	Images ImageSizer
	Poster Poster
	Logger *slog.Logger

	// OnRender is called after every successful render, including
	// messages promoted from the queue.
	OnRender func(kind proto.Kind, msg *proto.Message)
}

// Manager owns the OSD slot, the note pool and the pending queue.
type Manager struct {
	backend  Backend
	cfg      *config.DaemonConfig
	themes   ThemeSet
	images   ImageSizer
	poster   Poster
	logger   *slog.Logger
	onRender func(proto.Kind, *proto.Message)

	queue       *Queue
	osd         *Slot
	notes       []*Slot
	stack       []*Slot // stacked notes, indexed by StackPos
	stackHeight int

	// mu guards the fields the backend's event goroutine reads.
	mu       sync.Mutex
	byWindow map[WindowID]*Slot
	closed   bool
	lost     chan struct{}
	lostOnce sync.Once
}

// NewManager creates a manager drawing through backend. Call Start before use.
func NewManager(backend Backend, opts Options) *Manager {
	if opts.Config == nil {
		opts.Config = config.DefaultDaemonConfig()
	}
	if opts.Themes == nil {
		opts.Themes = Themes{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Poster == nil {
		opts.Poster = discardPoster{}
	}

	return &Manager{
		backend:  backend,
		cfg:      opts.Config,
		themes:   opts.Themes,
		images:   opts.Images,
		poster:   opts.Poster,
		logger:   opts.Logger,
		onRender: opts.OnRender,
		queue:    NewQueue(opts.Config.Behavior.QueueSize),
		byWindow: make(map[WindowID]*Slot),
		lost:     make(chan struct{}),
	}
}

// Start opens the backend and creates the OSD window and the note pool.
func (m *Manager) Start() error {
	if err := m.backend.Open(m); err != nil {
		return backendErr("open", err)
	}

	osd, err := m.createSlot(OSDSlot, proto.KindOSD)
	if err != nil {
		return err
	}
	m.osd = osd

	m.notes = make([]*Slot, 0, m.cfg.Notes.Max)
	for i := 1; i <= m.cfg.Notes.Max; i++ {
		s, err := m.createSlot(i, proto.KindNote)
		if err != nil {
			return err
		}
		m.notes = append(m.notes, s)
	}

	sw, sh := m.backend.Screen()
	m.logger.Info("display manager started",
		"notes", len(m.notes),
		"queue", m.queue.Cap(),
		"screen", []int{sw, sh},
	)
	return nil
}

func (m *Manager) createSlot(id int, kind proto.Kind) (*Slot, error) {
	win, err := m.backend.CreateWindow(kind)
	if err != nil {
		return nil, backendErr("create window", err)
	}
	s := newSlot(id, kind, win)

	m.mu.Lock()
	m.byWindow[win] = s
	m.mu.Unlock()
	return s, nil
}

// Reconfigure swaps config and themes in place. Visible popups keep their
// geometry until their next render. The pool size cannot change here; see
// config.DaemonConfig.NeedsRestart.
func (m *Manager) Reconfigure(cfg *config.DaemonConfig, themes ThemeSet) {
	m.cfg = cfg
	if themes != nil {
		m.themes = themes
	}
}

// Show renders, queues or drops msg and takes ownership of it.
//
// An OSD message always renders into the OSD slot. A note renders into a
// free note slot, or waits in the queue when all are stacked; when the
// queue is full too the message is dropped with ErrQueueFull.
func (m *Manager) Show(msg *proto.Message) (Outcome, error) {
	if m.isClosed() {
		msg.Release()
		return OutcomeDropped, ErrClosed
	}

	kind := msg.Kind()
	if _, err := selectElements(m.themes.Theme(kind), msg, m.images); err != nil {
		msg.Release()
		return OutcomeDropped, err
	}

	var slot *Slot
	if kind == proto.KindOSD {
		slot = m.osd
	} else {
		var err error
		slot, err = m.AcquireNoteSlot()
		if errors.Is(err, ErrNoSlot) {
			if !m.queue.TryEnqueue(msg) {
				msg.Release()
				return OutcomeDropped, ErrQueueFull
			}
			m.logger.Debug("queued message", "msg_id", msg.ID, "queue_len", m.queue.Len())
			return OutcomeQueued, nil
		}
	}

	err := m.RenderInto(slot, msg)
	msg.Release()
	if err != nil {
		return OutcomeDropped, err
	}
	return OutcomeRendered, nil
}

// AcquireNoteSlot reserves a free note slot at the next stack position.
func (m *Manager) AcquireNoteSlot() (*Slot, error) {
	if len(m.stack) >= len(m.notes) {
		return nil, ErrNoSlot
	}
	for _, s := range m.notes {
		if s.StackPos == Unassigned {
			s.StackPos = len(m.stack)
			s.State = SlotReserved
			m.stack = append(m.stack, s)
			return s, nil
		}
	}
	return nil, ErrNoSlot
}

// RenderInto draws msg into slot, maps the window if it is not visible and
// re-arms the slot timer. The caller keeps ownership of msg.
//
// If the render fails on a freshly reserved note slot the reservation is
// rolled back.
func (m *Manager) RenderInto(slot *Slot, msg *proto.Message) error {
	err := m.render(slot, msg)
	if err != nil && slot.State == SlotReserved {
		if uerr := m.unstack(slot); uerr != nil {
			err = errors.Join(err, uerr)
		}
		slot.State = SlotFree
	}
	return err
}

func (m *Manager) render(slot *Slot, msg *proto.Message) error {
	th := m.themes.Theme(slot.Kind)
	sc, err := computeScene(th, msg, layoutParams{
		kind:      slot.Kind,
		noteWidth: m.cfg.Notes.Width,
		measure:   m.backend.MeasureText,
		images:    m.images,
	})
	if err != nil {
		return err
	}

	geom := theme.Rect{Width: sc.Width, Height: sc.Height}
	span := sc.Height + m.cfg.Notes.Padding
	if slot.Kind == proto.KindNote {
		if slot.State == SlotReserved {
			slot.Offset = m.stackHeight
		}
		geom.X, geom.Y = m.notePosition(slot.Offset, geom.Width, geom.Height)
	} else {
		sw, sh := m.backend.Screen()
		geom.X = m.cfg.OSD.X.Resolve(sw, geom.Width)
		geom.Y = m.cfg.OSD.Y.Resolve(sh, geom.Height)
	}

	if err := m.backend.Configure(slot.Window, geom); err != nil {
		return backendErr("configure", err)
	}
	if err := m.backend.Draw(slot.Window, sc); err != nil {
		return backendErr("draw", err)
	}
	slot.Extents = geom

	if slot.Kind == proto.KindNote {
		// A stacked note that changes height pushes the notes above it.
		delta := span - slot.span
		slot.span = span
		m.stackHeight += delta
		if delta != 0 && slot.State != SlotReserved {
			if err := m.shift(slot.StackPos+1, delta); err != nil {
				return err
			}
		}
	}

	if !slot.mapped {
		slot.drainConfirm()
		if err := m.backend.Map(slot.Window); err != nil {
			return backendErr("map", err)
		}
		if !m.await(slot, true) {
			m.logger.Warn("window map not confirmed, continuing",
				"slot", slot.ID,
				"timeout", m.cfg.Display.MapTimeout.Duration(),
			)
		}
		slot.mapped = true
	}

	timeout := msg.TimeoutDuration()
	if timeout == 0 {
		timeout = m.cfg.DefaultTimeout(slot.Kind)
	}
	m.arm(slot, timeout)

	slot.State = SlotMapped
	slot.MessageID = msg.ID

	m.logger.Debug("rendered message",
		"msg_id", msg.ID,
		"kind", slot.Kind,
		"slot", slot.ID,
		"stack_pos", slot.StackPos,
		"geometry", geom,
		"timeout", timeout,
	)

	if m.onRender != nil {
		m.onRender(slot.Kind, msg)
	}
	return nil
}

// ReleaseNoteSlot hides a note, closes the gap it leaves in the stack,
// frees the slot and promotes the oldest queued message into it.
func (m *Manager) ReleaseNoteSlot(slot *Slot) error {
	if slot.Kind != proto.KindNote || slot.StackPos == Unassigned {
		return nil
	}

	var errs []error
	if err := m.hide(slot); err != nil {
		errs = append(errs, err)
	}
	if err := m.unstack(slot); err != nil {
		errs = append(errs, err)
	}
	slot.State = SlotFree
	slot.MessageID = ulid.ULID{}

	if err := m.promote(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// hide unmaps the slot window and waits for the confirmation.
func (m *Manager) hide(slot *Slot) error {
	slot.stopTimer()
	slot.State = SlotUnmapping
	if !slot.mapped {
		return nil
	}

	slot.drainConfirm()
	if err := m.backend.Unmap(slot.Window); err != nil {
		slot.mapped = false
		return backendErr("unmap", err)
	}
	if !m.await(slot, false) {
		m.logger.Warn("window unmap not confirmed, continuing", "slot", slot.ID)
	}
	slot.mapped = false
	return nil
}

// unstack removes slot from the stack and slides the notes above it into
// the gap, on screen as well as in the bookkeeping.
func (m *Manager) unstack(slot *Slot) error {
	pos := slot.StackPos
	if pos == Unassigned {
		return nil
	}

	m.stack = slices.Delete(m.stack, pos, pos+1)
	slot.StackPos = Unassigned

	span := slot.span
	slot.span = 0
	slot.Offset = 0
	m.stackHeight -= span

	for i := pos; i < len(m.stack); i++ {
		m.stack[i].StackPos = i
	}
	return m.shift(pos, -span)
}

// shift moves every stacked note from stack position from onwards by delta.
func (m *Manager) shift(from int, delta int) error {
	if delta == 0 {
		return nil
	}
	var errs []error
	for _, s := range m.stack[min(from, len(m.stack)):] {
		s.Offset += delta
		if s.State != SlotMapped {
			continue
		}
		geom := s.Extents
		geom.X, geom.Y = m.notePosition(s.Offset, geom.Width, geom.Height)
		if err := m.backend.Configure(s.Window, geom); err != nil {
			errs = append(errs, backendErr("configure", err))
			continue
		}
		s.Extents = geom
	}
	return errors.Join(errs...)
}

// promote renders queued messages until one succeeds or the pool is full.
func (m *Manager) promote() error {
	for m.queue.Len() > 0 {
		slot, err := m.AcquireNoteSlot()
		if err != nil {
			return nil
		}
		msg, _ := m.queue.Dequeue()
		err = m.RenderInto(slot, msg)
		msg.Release()
		if err == nil {
			m.logger.Debug("promoted queued message", "slot", slot.ID, "queue_len", m.queue.Len())
			return nil
		}
		if IsFatal(err) {
			return err
		}
		m.logger.Warn("failed to render queued message", "error", err)
	}
	return nil
}

// HandleTimeout acts on a timer event. It reports false for events from a
// cancelled or re-armed timer, which are ignored.
func (m *Manager) HandleTimeout(slotID int, generation uint64) (bool, error) {
	slot := m.Slot(slotID)
	if slot == nil || slot.generation != generation || slot.State != SlotMapped {
		m.logger.Debug("ignoring stale timeout", "slot", slotID, "generation", generation)
		return false, nil
	}

	m.logger.Debug("popup timed out", "slot", slot.ID, "kind", slot.Kind, "msg_id", slot.MessageID)
	if slot.Kind == proto.KindOSD {
		err := m.hide(slot)
		slot.State = SlotFree
		slot.MessageID = ulid.ULID{}
		return true, err
	}
	return true, m.ReleaseNoteSlot(slot)
}

// arm (re)starts the slot timer.
func (m *Manager) arm(slot *Slot, d time.Duration) {
	slot.stopTimer()
	id, gen := slot.ID, slot.generation
	slot.timer = time.AfterFunc(d, func() {
		m.poster.Post(bridge.Event{
			Kind:       bridge.EventTimeout,
			Slot:       id,
			Generation: gen,
			Source:     "timer",
		})
	})
}

// await blocks until the backend confirms the wanted map state, the map
// timeout expires or the backend is lost. It reports whether the
// confirmation arrived.
func (m *Manager) await(slot *Slot, mapped bool) bool {
	var expired <-chan time.Time
	if d := m.cfg.Display.MapTimeout.Duration(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		expired = t.C
	}
	for {
		select {
		case got := <-slot.confirm:
			if got == mapped {
				return true
			}
		case <-expired:
			return false
		case <-m.lost:
			return false
		}
	}
}

// notePosition returns the screen origin of a note at the given stack offset.
func (m *Manager) notePosition(offset, width, height int) (x, y int) {
	sw, sh := m.backend.Screen()
	bp := m.cfg.Notes.BorderPadding
	pos := config.Position(m.cfg.Notes.Position)

	x = sw - bp - width
	if pos.IsLeft() {
		x = bp
	}
	y = bp + offset
	if pos.IsBottom() {
		y = sh - bp - offset - height
	}
	return x, y
}

// Close hides and destroys every window, drops the queued messages and
// closes the backend. It returns the first errors encountered; the
// teardown always runs to the end.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	var errs []error
	slots := m.Slots()
	for _, s := range slots {
		s.stopTimer()
		if s.mapped {
			if err := m.backend.Unmap(s.Window); err != nil {
				errs = append(errs, backendErr("unmap", err))
			}
			s.mapped = false
		}
		if err := m.backend.DestroyWindow(s.Window); err != nil {
			errs = append(errs, backendErr("destroy window", err))
		}
		s.State = SlotFree
		s.StackPos = Unassigned
	}
	m.stack = nil
	m.stackHeight = 0

	dropped := m.queue.DrainAndRelease()
	if err := m.backend.Close(); err != nil {
		errs = append(errs, backendErr("close", err))
	}

	m.mu.Lock()
	clear(m.byWindow)
	m.mu.Unlock()

	m.logger.Info("display manager stopped", "windows", len(slots), "dropped_queued", dropped)
	return errors.Join(errs...)
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Slot returns the slot with the given ID, or nil.
func (m *Manager) Slot(id int) *Slot {
	if id == OSDSlot {
		return m.osd
	}
	if id < 1 || id > len(m.notes) {
		return nil
	}
	return m.notes[id-1]
}

// Slots returns the OSD slot followed by the note pool.
func (m *Manager) Slots() []*Slot {
	if m.osd == nil {
		return slices.Clone(m.notes)
	}
	return append([]*Slot{m.osd}, m.notes...)
}

// Stack returns the stacked notes in stack order.
func (m *Manager) Stack() []*Slot {
	return slices.Clone(m.stack)
}

// QueueLen returns the number of waiting messages.
func (m *Manager) QueueLen() int { return m.queue.Len() }

// Visible returns the number of stacked notes.
func (m *Manager) Visible() int { return len(m.stack) }

// Capacity returns the size of the note pool.
func (m *Manager) Capacity() int { return len(m.notes) }

// WindowMapped implements EventSink.
func (m *Manager) WindowMapped(id WindowID) { m.confirm(id, true) }

// WindowUnmapped implements EventSink.
func (m *Manager) WindowUnmapped(id WindowID) { m.confirm(id, false) }

func (m *Manager) confirm(id WindowID, mapped bool) {
	m.mu.Lock()
	s := m.byWindow[id]
	m.mu.Unlock()
	if s == nil {
		return
	}
	select {
	case s.confirm <- mapped:
	default:
	}
}

// BackendLost implements EventSink. It wakes any pending map wait and asks
// the loop to shut down.
func (m *Manager) BackendLost(err error) {
	m.lostOnce.Do(func() { close(m.lost) })
	if err == nil {
		err = ErrBackendLost
	}
	m.poster.TryPost(bridge.Event{
		Kind:   bridge.EventBackendLost,
		Err:    &BackendError{Op: "connection", Err: errors.Join(ErrBackendLost, err)},
		Source: "backend",
	})
}

type discardPoster struct{}

func (discardPoster) Post(bridge.Event) bool    { return false }
func (discardPoster) TryPost(bridge.Event) bool { return false }
