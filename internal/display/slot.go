package display

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/thor/internal/proto"
	"github.com/jmylchreest/thor/internal/theme"
)

// SlotState is the lifecycle state of a slot.
type SlotState int

const (
	// SlotFree slots hold no message.
	SlotFree SlotState = iota
	// SlotReserved note slots have a stack position but nothing drawn yet.
	SlotReserved
	// SlotMapped slots are visible and have a running timer.
	SlotMapped
	// SlotUnmapping slots are being hidden.
	SlotUnmapping
)

func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "free"
	case SlotReserved:
		return "reserved"
	case SlotMapped:
		return "mapped"
	case SlotUnmapping:
		return "unmapping"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// Unassigned is the stack position of a note slot that is not stacked.
const Unassigned = -1

// OSDSlot is the ID of the reserved OSD slot. Note slots are numbered from 1.
const OSDSlot = 0

// Slot is one reusable popup window.
type Slot struct {
	ID     int
	Kind   proto.Kind
	Window WindowID

	// Extents is the last configured screen geometry.
	Extents theme.Rect
	State   SlotState

	// StackPos is the rank among stacked notes, or Unassigned.
	StackPos int
	// Offset is the distance from the stack origin to the window.
	Offset int

	// MessageID is the message currently shown.
	MessageID ulid.ULID

	span       int // stack space taken: height plus padding
	mapped     bool
	confirm    chan bool
	timer      *time.Timer
	generation uint64
}

func newSlot(id int, kind proto.Kind, window WindowID) *Slot {
	return &Slot{
		ID:       id,
		Kind:     kind,
		Window:   window,
		StackPos: Unassigned,
		confirm:  make(chan bool, 4),
	}
}

// Mapped reports whether the display server considers the window visible.
func (s *Slot) Mapped() bool { return s.mapped }

// Generation identifies the currently armed timer.
func (s *Slot) Generation() uint64 { return s.generation }

// drainConfirm discards confirmations left over from an earlier request.
func (s *Slot) drainConfirm() {
	for {
		select {
		case <-s.confirm:
		default:
			return
		}
	}
}

// generations is shared by every slot of every manager, so a timer event
// left over from a torn down pool never matches a slot of its successor.
var generations atomic.Uint64

// stopTimer cancels the slot timer. Events already posted by it become
// stale because the generation moves on.
func (s *Slot) stopTimer() {
	s.generation = generations.Add(1)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
