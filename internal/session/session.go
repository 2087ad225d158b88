// Package session implements the fixed-capacity session table: one slot
// per live connection, addressed by its stable index, carrying socket
// handle, connection lifecycle state, identity, and the per-session
// inbound ring buffer.
package session

import (
	"fmt"

	"github.com/classicwire/classicd/internal/ringbuf"
)

// State is the connection lifecycle. A close completion always reaches
// Disconnected regardless of the prior state.
type State uint8

const (
	StateHandshaking State = iota
	StateAuthenticating
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MaxUsernameLen bounds the inline username field.
const MaxUsernameLen = 16

// vacantFD is the sentinel marking a slot as unoccupied.
const vacantFD = -1

// defaultRingSize and defaultRingMirrors match the accept handler:
// every fresh session gets a 4096-byte ring with one mirror.
const (
	defaultRingSize    = 4096
	defaultRingMirrors = 1
)

// Slot is one connection's complete bookkeeping record.
// Username is only meaningful while State is Authenticating, Connected,
// or Disconnecting.
type Slot struct {
	FD          int32
	State       State
	PeerAddr    [4]byte
	PeerPort    uint16
	Username    string
	Ring        *ringbuf.Ring
	ReadCursor  uint64
	WriteCursor uint64
	BytesIn     uint64
	BytesOut    uint64
}

func (s *Slot) vacant() bool { return s.FD == vacantFD }

// StaleFor reports whether this slot no longer belongs to fd: either it
// has been released (vacant) or reused for a different connection since
// the caller last observed it. Completion handlers must check this before
// touching a slot, since a racing close can release and reacquire it
// between submission and completion.
func (s *Slot) StaleFor(fd int32) bool { return s.vacant() || s.FD != fd }

// Readable returns the number of unread bytes currently in the ring.
func (s *Slot) Readable() uint64 { return s.WriteCursor - s.ReadCursor }

// Writable returns the remaining capacity in the ring.
func (s *Slot) Writable() uint64 { return uint64(s.Ring.Size()) - s.Readable() }

// ReadPtr returns a linear slice of exactly Readable() bytes starting at
// ReadCursor; the mirror guarantees this never needs manual wrap logic.
func (s *Slot) ReadPtr() []byte {
	off := int(s.ReadCursor % uint64(s.Ring.Size()))
	return s.Ring.Data()[off : off+int(s.Readable())]
}

// WritePtr returns a linear slice of exactly Writable() bytes starting
// right after the last readable byte.
func (s *Slot) WritePtr() []byte {
	off := int(s.WriteCursor % uint64(s.Ring.Size()))
	return s.Ring.Data()[off : off+int(s.Writable())]
}

// AdvanceRead moves the read cursor forward by n bytes, enforcing the
// write_cursor >= read_cursor invariant.
func (s *Slot) AdvanceRead(n uint64) {
	s.ReadCursor += n
	if s.ReadCursor > s.WriteCursor {
		panic("session: read cursor advanced past write cursor")
	}
}

// AdvanceWrite moves the write cursor forward by n bytes (after a recv
// completion appended n bytes) and commits the mirror.
func (s *Slot) AdvanceWrite(n uint64) {
	off := int(s.WriteCursor % uint64(s.Ring.Size()))
	s.Ring.Commit(off, int(n))
	s.WriteCursor += n
	if s.WriteCursor-s.ReadCursor > uint64(s.Ring.Size()) {
		panic("session: ring buffer overflowed its capacity")
	}
}

// Table is the fixed-capacity array of connection slots sized at server
// creation.
type Table struct {
	slots []Slot
}

// NewTable creates a table with room for exactly capacity sessions.
func NewTable(capacity int) (*Table, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("session: capacity must be positive, got %d", capacity)
	}
	t := &Table{slots: make([]Slot, capacity)}
	for i := range t.slots {
		t.slots[i].FD = vacantFD
	}
	return t, nil
}

// Cap returns the table's fixed capacity.
func (t *Table) Cap() int { return len(t.slots) }

// Get returns the slot at idx for direct inspection/mutation by the
// engine and dispatcher.
func (t *Table) Get(idx int32) *Slot { return &t.slots[idx] }

// Acquire performs a linear scan for the first vacant slot — O(n) in
// capacity, acceptable at the N <= 1024 scale.
// On success the slot is zeroed, given a fresh ring buffer, and set to
// StateHandshaking.
func (t *Table) Acquire(fd int32) (idx int32, ok bool, err error) {
	for i := range t.slots {
		if t.slots[i].vacant() {
			ring, rerr := ringbuf.New(defaultRingSize, defaultRingMirrors)
			if rerr != nil {
				return 0, false, fmt.Errorf("session: acquire: %w", rerr)
			}
			t.slots[i] = Slot{
				FD:    fd,
				State: StateHandshaking,
				Ring:  ring,
			}
			return int32(i), true, nil
		}
	}
	return 0, false, nil
}

// Release unmaps the slot's ring buffer and clears the entire slot,
// leaving it vacant in StateDisconnected. It must be called exactly once
// per acquired slot, and only by the close completion handler.
func (t *Table) Release(idx int32) error {
	s := &t.slots[idx]
	if s.vacant() {
		return fmt.Errorf("session: release: slot %d already vacant", idx)
	}
	var err error
	if s.Ring != nil {
		err = s.Ring.Close()
	}
	*s = Slot{FD: vacantFD, State: StateDisconnected}
	return err
}
