package server

import (
	"errors"
	"iter"
	"time"
)

// SlotID indexes the connection table. Slot 0 is the listener.
type SlotID int

const ListenerSlot SlotID = 0

// EmptyHandle marks a free slot.
const EmptyHandle = -1

var (
	ErrTableFull       = errors.New("server: connection table full")
	ErrInvalidCapacity = errors.New("server: table capacity must hold the listener and one client")
	ErrInvalidHandle   = errors.New("server: invalid handle")
)

// Interest is the readiness condition a slot waits on.
type Interest uint8

const (
	InterestAccept Interest = 1 << iota
	// InterestHangup watches only for peer close or socket error.
	InterestHangup
	InterestWrite
)

func (i Interest) String() string {
	switch i {
	case InterestAccept:
		return "accept"
	case InterestHangup:
		return "hangup"
	case InterestWrite:
		return "write"
	case InterestHangup | InterestWrite:
		return "hangup|write"
	case 0:
		return "none"
	default:
		return "mixed"
	}
}

// Slot tracks one socket handle.
type Slot struct {
	Handle   int
	Interest Interest
	Session  string
	Remote   string
	Opened   time.Time
	// Due is when the session may send; zero means immediately.
	Due time.Time
	// Pending holds the unsent tail of the frame once sending started.
	Pending []byte
	// WriteBy bounds the send; zero until the first write attempt.
	WriteBy time.Time
}

func (s Slot) empty() bool {
	return s.Handle == EmptyHandle
}

// SlotInfo is the read-only view of an occupied slot.
type SlotInfo struct {
	ID       SlotID    `json:"id"`
	Handle   int       `json:"handle"`
	Interest string    `json:"interest"`
	Session  string    `json:"session,omitempty"`
	Remote   string    `json:"remote,omitempty"`
	Opened   time.Time `json:"opened"`
	Due      time.Time `json:"due,omitzero"`
}

// SlotTable is a fixed-capacity registry of live handles.
// It is owned by a single goroutine and does no locking.
type SlotTable struct {
	slots  []Slot
	active int
}

// NewSlotTable reserves slot 0 for listener and leaves capacity-1 client slots.
func NewSlotTable(capacity int, listener Slot) (*SlotTable, error) {
	if capacity < 2 {
		return nil, ErrInvalidCapacity
	}
	if listener.Handle < 0 {
		return nil, ErrInvalidHandle
	}
	slots := make([]Slot, capacity)
	for i := range slots {
		slots[i] = Slot{Handle: EmptyHandle}
	}
	listener.Interest = InterestAccept
	slots[ListenerSlot] = listener
	return &SlotTable{slots: slots}, nil
}

// TryInsert occupies the first empty client slot.
// A full table is left untouched.
func (t *SlotTable) TryInsert(s Slot) (SlotID, error) {
	if s.Handle < 0 {
		return 0, ErrInvalidHandle
	}
	for i := 1; i < len(t.slots); i++ {
		if t.slots[i].empty() {
			t.slots[i] = s
			t.active++
			return SlotID(i), nil
		}
	}
	return 0, ErrTableFull
}

// Remove frees a client slot. The caller closes the handle first.
func (t *SlotTable) Remove(id SlotID) bool {
	if id == ListenerSlot || !t.valid(id) || t.slots[id].empty() {
		return false
	}
	t.slots[id] = Slot{Handle: EmptyHandle}
	t.active--
	return true
}

func (t *SlotTable) Get(id SlotID) (Slot, bool) {
	if !t.valid(id) || t.slots[id].empty() {
		return Slot{}, false
	}
	return t.slots[id], true
}

func (t *SlotTable) SetInterest(id SlotID, in Interest) bool {
	if id == ListenerSlot || !t.valid(id) || t.slots[id].empty() {
		return false
	}
	t.slots[id].Interest = in
	return true
}

// SetPending records send progress for a client slot.
func (t *SlotTable) SetPending(id SlotID, pending []byte, writeBy time.Time) bool {
	if id == ListenerSlot || !t.valid(id) || t.slots[id].empty() {
		return false
	}
	t.slots[id].Pending = pending
	t.slots[id].WriteBy = writeBy
	return true
}

// Iterate yields the listener and every occupied slot in index order.
// Each call starts a fresh pass.
func (t *SlotTable) Iterate() iter.Seq2[SlotID, Slot] {
	return func(yield func(SlotID, Slot) bool) {
		for i, s := range t.slots {
			if s.empty() {
				continue
			}
			if !yield(SlotID(i), s) {
				return
			}
		}
	}
}

// Active counts occupied client slots.
func (t *SlotTable) Active() int {
	return t.active
}

// Capacity includes the listener slot.
func (t *SlotTable) Capacity() int {
	return len(t.slots)
}

func (t *SlotTable) Snapshot() []SlotInfo {
	out := make([]SlotInfo, 0, t.active+1)
	for id, s := range t.Iterate() {
		out = append(out, SlotInfo{
			ID:       id,
			Handle:   s.Handle,
			Interest: s.Interest.String(),
			Session:  s.Session,
			Remote:   s.Remote,
			Opened:   s.Opened,
			Due:      s.Due,
		})
	}
	return out
}

func (t *SlotTable) valid(id SlotID) bool {
	return id >= 0 && int(id) < len(t.slots)
}
