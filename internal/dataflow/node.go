package dataflow

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
)

// NumSlots is the fixed number of sources a Node can hold. Every binary
// attaching to a channel must agree on it; it is part of the layout word.
const NumSlots = 10

const (
	layoutMagic   uint32 = 0x5346 // "SF"
	layoutVersion uint32 = 2
	layoutWord           = layoutMagic<<16 | layoutVersion<<8 | NumSlots
)

// SinkState is the attachment state of a channel's producer.
type SinkState uint32

const (
	SinkUndefined SinkState = iota
	SinkBound
)

func (s SinkState) String() string {
	switch s {
	case SinkUndefined:
		return "undefined"
	case SinkBound:
		return "bound"
	default:
		return fmt.Sprintf("SinkState(%d)", uint32(s))
	}
}

type slot struct {
	inUse      atomic.Uint32
	ownerPID   atomic.Uint32
	// generation counts acquisitions, so a holder can tell whether the
	// slot was released and handed to someone else.
	generation atomic.Uint32
	_          uint32
	readDone   Barrier
}

// Node coordinates one sink and up to NumSlots sources over a shared
// sample buffer. It is placed directly in shared memory, so it holds no
// pointers; a zero Node is a fresh, unbound Node with no sources.
type Node struct {
	layout    atomic.Uint32
	sinkState atomic.Uint32
	sinkPID   atomic.Uint32
	refCount  atomic.Uint32
	detaches  atomic.Uint32
	// epoch is the detaches value of the binding that published the
	// current sample.
	epoch     atomic.Uint32
	session   [2]atomic.Uint64

	payloadLen atomic.Uint64
	payloadCap atomic.Uint64

	// writeReady's value is the sample counter.
	writeReady Barrier
	slots      [NumSlots]slot
}

var nodeSize = int(unsafe.Sizeof(Node{}))

// nodeAt views the start of a shared header as a Node.
func nodeAt(header []byte) (*Node, error) {
	if len(header) < nodeSize {
		return nil, fmt.Errorf("header of %d bytes cannot hold a node of %d", len(header), nodeSize)
	}
	return (*Node)(unsafe.Pointer(&header[0])), nil
}

// checkLayout stamps a fresh Node with this build's layout word or verifies
// an existing stamp. Callers hold the segment lock.
func (n *Node) checkLayout() error {
	if n.layout.CompareAndSwap(0, layoutWord) {
		return nil
	}
	if got := n.layout.Load(); got != layoutWord {
		return fmt.Errorf("%w: segment has %#x, want %#x", ErrLayoutMismatch, got, layoutWord)
	}
	return nil
}

// AcquireSlot claims the first free slot and returns its index.
func (n *Node) AcquireSlot() (int, error) {
	idx, _, err := n.acquire()
	return idx, err
}

// acquire claims a slot and pre-acknowledges the current counter so the
// sink is not held back by a sample published before the source arrived.
func (n *Node) acquire() (int, uint64, error) {
	for i := range n.slots {
		s := &n.slots[i]
		if !s.inUse.CompareAndSwap(0, 1) {
			continue
		}
		s.ownerPID.Store(uint32(os.Getpid()))
		s.generation.Add(1)
		acked := n.writeReady.Value()
		s.readDone.raise(acked)
		n.refCount.Add(1)
		return i, acked, nil
	}
	return -1, 0, fmt.Errorf("%w: %d sources attached", ErrCapacityExceeded, NumSlots)
}

// ReleaseSlot frees a slot. Releasing an index that is out of range or not
// in use does nothing. It reports whether a slot was freed.
func (n *Node) ReleaseSlot(index int) bool {
	if index < 0 || index >= NumSlots {
		return false
	}
	s := &n.slots[index]
	if !s.inUse.CompareAndSwap(1, 0) {
		return false
	}
	s.ownerPID.Store(0)
	n.refCount.Add(^uint32(0))
	// a sink blocked on this slot re-checks and skips it
	s.readDone.wake()
	return true
}

// releaseOwned frees slot index only while it still belongs to this
// process under acquisition gen. Callers hold the segment lock.
func (n *Node) releaseOwned(index int, gen uint32) bool {
	if index < 0 || index >= NumSlots {
		return false
	}
	s := &n.slots[index]
	if s.generation.Load() != gen || s.ownerPID.Load() != uint32(os.Getpid()) {
		return false
	}
	return n.ReleaseSlot(index)
}

// ReadBarrier returns the read-done barrier of slot index. Valid indices
// are 0 <= index < SourceRefCount().
func (n *Node) ReadBarrier(index int) (*Barrier, error) {
	if index < 0 || index >= n.SourceRefCount() {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, index, n.SourceRefCount())
	}
	return &n.slots[index].readDone, nil
}

// BindSink moves the sink state from undefined to bound.
func (n *Node) BindSink() error {
	if !n.sinkState.CompareAndSwap(uint32(SinkUndefined), uint32(SinkBound)) {
		return fmt.Errorf("%w: held by pid %d", ErrAlreadyBound, n.sinkPID.Load())
	}
	n.sinkPID.Store(uint32(os.Getpid()))
	return nil
}

// UnbindSink moves the sink state back to undefined and wakes sources so
// they observe the end of the stream. It reports whether a sink was bound.
func (n *Node) UnbindSink() bool {
	if !n.sinkState.CompareAndSwap(uint32(SinkBound), uint32(SinkUndefined)) {
		return false
	}
	n.sinkPID.Store(0)
	n.detaches.Add(1)
	n.writeReady.wake()
	return true
}

// SinkState returns the current sink attachment state.
func (n *Node) SinkState() SinkState {
	return SinkState(n.sinkState.Load())
}

// SourceRefCount returns the number of slots in use.
func (n *Node) SourceRefCount() int {
	return int(n.refCount.Load())
}

// SampleCounter returns the number of samples published so far.
func (n *Node) SampleCounter() uint64 {
	return n.writeReady.Value()
}

// Session returns the identity of the current or last sink binding.
func (n *Node) Session() uuid.UUID {
	var id uuid.UUID
	hi, lo := n.session[0].Load(), n.session[1].Load()
	for i := 0; i < 8; i++ {
		id[i] = byte(hi >> (56 - 8*i))
		id[8+i] = byte(lo >> (56 - 8*i))
	}
	return id
}

func (n *Node) setSession(id uuid.UUID) {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(id[i])
		lo = lo<<8 | uint64(id[8+i])
	}
	n.session[0].Store(hi)
	n.session[1].Store(lo)
}

// idle reports whether nobody is attached, so the segment can be removed.
func (n *Node) idle() bool {
	return n.SinkState() == SinkUndefined && n.SourceRefCount() == 0
}

// SlotSnapshot is a point-in-time view of one slot.
type SlotSnapshot struct {
	Index    int    `json:"index"`
	InUse    bool   `json:"in_use"`
	OwnerPID int    `json:"owner_pid,omitempty"`
	Acked    uint64 `json:"acked"`
}

// Snapshot is a point-in-time view of a Node. Fields are read individually
// and may be mutually inconsistent while the channel is live.
type Snapshot struct {
	Counter    uint64         `json:"counter"`
	SinkState  string         `json:"sink_state"`
	SinkPID    int            `json:"sink_pid,omitempty"`
	Session    string         `json:"session,omitempty"`
	Sources    int            `json:"sources"`
	PayloadLen uint64         `json:"payload_len"`
	PayloadCap uint64         `json:"payload_cap"`
	Slots      []SlotSnapshot `json:"slots"`
}

// Snapshot reads the Node for diagnostics.
func (n *Node) Snapshot() Snapshot {
	snap := Snapshot{
		Counter:    n.SampleCounter(),
		SinkState:  n.SinkState().String(),
		SinkPID:    int(n.sinkPID.Load()),
		Sources:    n.SourceRefCount(),
		PayloadLen: n.payloadLen.Load(),
		PayloadCap: n.payloadCap.Load(),
		Slots:      make([]SlotSnapshot, NumSlots),
	}
	if id := n.Session(); id != uuid.Nil {
		snap.Session = id.String()
	}
	for i := range n.slots {
		s := &n.slots[i]
		snap.Slots[i] = SlotSnapshot{
			Index:    i,
			InUse:    s.inUse.Load() == 1,
			OwnerPID: int(s.ownerPID.Load()),
			Acked:    s.readDone.Value(),
		}
	}
	return snap
}
