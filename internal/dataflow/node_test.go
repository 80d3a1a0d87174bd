package dataflow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshNode(t *testing.T) {
	n := new(Node)

	assert.Equal(t, 0, n.SourceRefCount())
	assert.Equal(t, SinkUndefined, n.SinkState())
	assert.Equal(t, uint64(0), n.SampleCounter())
	assert.Equal(t, uuid.Nil, n.Session())
}

func TestAcquireUpToCapacity(t *testing.T) {
	for want := 0; want <= NumSlots; want++ {
		n := new(Node)
		for i := 0; i < want; i++ {
			idx, err := n.AcquireSlot()
			require.NoError(t, err)
			assert.Equal(t, i, idx)
		}
		assert.Equal(t, want, n.SourceRefCount())
	}

	n := new(Node)
	for i := 0; i < NumSlots; i++ {
		_, err := n.AcquireSlot()
		require.NoError(t, err)
	}
	idx, err := n.AcquireSlot()
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, -1, idx)
	assert.Equal(t, NumSlots, n.SourceRefCount())
}

func TestAcquireReusesFirstFreeSlot(t *testing.T) {
	n := new(Node)
	for i := 0; i < 4; i++ {
		_, err := n.AcquireSlot()
		require.NoError(t, err)
	}
	require.True(t, n.ReleaseSlot(1))

	idx, err := n.AcquireSlot()
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 4, n.SourceRefCount())
}

func TestReleaseIsIdempotent(t *testing.T) {
	tests := []struct {
		name     string
		acquired int
		release  []int
		want     int
	}{
		{name: "never acquired", acquired: 0, release: []int{0}, want: 0},
		{name: "negative index", acquired: 2, release: []int{-1}, want: 2},
		{name: "past table", acquired: 2, release: []int{NumSlots, NumSlots + 5}, want: 2},
		{name: "in range but unused", acquired: 2, release: []int{5}, want: 2},
		{name: "released twice", acquired: 2, release: []int{0, 0}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := new(Node)
			for i := 0; i < tt.acquired; i++ {
				_, err := n.AcquireSlot()
				require.NoError(t, err)
			}
			for _, idx := range tt.release {
				n.ReleaseSlot(idx)
			}
			assert.Equal(t, tt.want, n.SourceRefCount())

			inUse := 0
			for _, s := range n.Snapshot().Slots {
				if s.InUse {
					inUse++
				}
			}
			assert.Equal(t, tt.want, inUse)
		})
	}
}

func TestReadBarrierRange(t *testing.T) {
	n := new(Node)
	_, err := n.ReadBarrier(0)
	assert.ErrorIs(t, err, ErrOutOfRange)

	for i := 0; i < 3; i++ {
		_, err := n.AcquireSlot()
		require.NoError(t, err)
	}

	_, err = n.ReadBarrier(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = n.ReadBarrier(3)
	assert.ErrorIs(t, err, ErrOutOfRange)

	for i := 0; i < 3; i++ {
		b, err := n.ReadBarrier(i)
		require.NoError(t, err)
		assert.Same(t, &n.slots[i].readDone, b)
	}
}

func TestFullTableScenario(t *testing.T) {
	n := new(Node)
	for i := 0; i < NumSlots; i++ {
		idx, err := n.AcquireSlot()
		require.NoError(t, err)
		require.Equal(t, i, idx)
	}

	_, err := n.ReadBarrier(NumSlots)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = n.ReadBarrier(NumSlots - 1)
	assert.NoError(t, err)

	assert.True(t, n.ReleaseSlot(0))
	assert.Equal(t, NumSlots-1, n.SourceRefCount())

	snap := n.Snapshot()
	assert.Equal(t, NumSlots-1, snap.Sources)
	assert.False(t, snap.Slots[0].InUse)
	for _, s := range snap.Slots[1:] {
		assert.True(t, s.InUse)
	}
}

func TestBindSink(t *testing.T) {
	n := new(Node)

	require.NoError(t, n.BindSink())
	assert.Equal(t, SinkBound, n.SinkState())

	err := n.BindSink()
	assert.ErrorIs(t, err, ErrAlreadyBound)
	assert.Equal(t, SinkBound, n.SinkState())

	assert.True(t, n.UnbindSink())
	assert.False(t, n.UnbindSink())
	assert.Equal(t, SinkUndefined, n.SinkState())

	require.NoError(t, n.BindSink())
}

func TestUnbindCountsDetaches(t *testing.T) {
	n := new(Node)
	require.NoError(t, n.BindSink())
	n.UnbindSink()
	n.UnbindSink()
	assert.Equal(t, uint32(1), n.detaches.Load())
}

func TestAcquirePreAcknowledgesCounter(t *testing.T) {
	n := new(Node)
	n.writeReady.raise(41)

	idx, acked, err := n.acquire()
	require.NoError(t, err)
	assert.Equal(t, uint64(41), acked)
	assert.Equal(t, uint64(41), n.slots[idx].readDone.Value())
}

func TestSessionRoundTrip(t *testing.T) {
	n := new(Node)
	id := uuid.New()
	n.setSession(id)

	assert.Equal(t, id, n.Session())
	assert.Equal(t, id.String(), n.Snapshot().Session)
}

func TestCheckLayout(t *testing.T) {
	n := new(Node)
	require.NoError(t, n.checkLayout())
	require.NoError(t, n.checkLayout())

	n.layout.Store(layoutWord + 1)
	assert.ErrorIs(t, n.checkLayout(), ErrLayoutMismatch)
}

func TestNodeAtRejectsShortHeader(t *testing.T) {
	_, err := nodeAt(make([]byte, nodeSize-1))
	assert.Error(t, err)
}

func TestSinkStateString(t *testing.T) {
	assert.Equal(t, "undefined", SinkUndefined.String())
	assert.Equal(t, "bound", SinkBound.String())
	assert.Equal(t, "SinkState(7)", SinkState(7).String())
}
