package dataflow

import (
	"sync/atomic"

	"github.com/GriffinCanCode/shmflow/internal/shmem"
)

// Barrier is an event count living in shared memory. It carries a
// monotonically increasing value and a sequence word that waiters sleep on.
// Only Sink and Source raise barriers; everyone else may read them.
type Barrier struct {
	seq     atomic.Uint32
	waiters atomic.Uint32
	value   atomic.Uint64
}

// Value returns the last raised value.
func (b *Barrier) Value() uint64 {
	return b.value.Load()
}

// raise publishes v and wakes every waiter.
func (b *Barrier) raise(v uint64) {
	b.value.Store(v)
	b.wake()
}

// wake releases waiters without changing the value so they re-check their
// condition.
func (b *Barrier) wake() {
	b.seq.Add(1)
	if b.waiters.Load() > 0 {
		shmem.WakeAll(&b.seq)
	}
}

// wait blocks until done reports true. done is evaluated after the sequence
// word is sampled, so a raise between the check and the sleep is never lost.
func (b *Barrier) wait(done func() bool) {
	b.waiters.Add(1)
	defer b.waiters.Add(^uint32(0))

	for {
		seq := b.seq.Load()
		if done() {
			return
		}
		shmem.Wait(&b.seq, seq)
	}
}
