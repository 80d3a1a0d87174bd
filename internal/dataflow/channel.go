package dataflow

import (
	"fmt"

	"github.com/GriffinCanCode/shmflow/internal/shmem"
)

const attachAttempts = 8

// attach opens the named segment and runs fn on its Node under the segment
// lock. A segment removed by its last user between open and lock is
// reopened, so fn never runs against an orphaned file. Without create, a
// missing segment is an error.
func attach(dir, name string, create bool, fn func(*shmem.Segment, *Node) error) (*shmem.Segment, *Node, error) {
	openSegment := shmem.OpenExisting
	if create {
		openSegment = shmem.Open
	}

	for attempt := 0; attempt < attachAttempts; attempt++ {
		seg, err := openSegment(dir, name, nodeSize)
		if err != nil {
			return nil, nil, err
		}
		node, err := nodeAt(seg.Header())
		if err != nil {
			seg.Close()
			return nil, nil, err
		}

		stale := false
		err = seg.WithLock(func() error {
			unlinked, err := seg.Unlinked()
			if err != nil {
				return err
			}
			if unlinked {
				stale = true
				return nil
			}
			if err := node.checkLayout(); err != nil {
				return err
			}
			return fn(seg, node)
		})
		if err != nil {
			seg.Close()
			return nil, nil, err
		}
		if stale {
			seg.Close()
			continue
		}
		return seg, node, nil
	}
	return nil, nil, fmt.Errorf("attach %s: segment repeatedly removed during attach", name)
}

// detach runs fn under the segment lock, removes the segment when nobody is
// left attached, and unmaps it.
func detach(seg *shmem.Segment, node *Node, fn func()) (removed bool, err error) {
	err = seg.WithLock(func() error {
		fn()
		if node.idle() {
			removed = true
			return seg.Unlink()
		}
		return nil
	})
	if cerr := seg.Close(); err == nil {
		err = cerr
	}
	return removed, err
}

// Inspect returns a snapshot of an existing channel's Node without
// attaching to it.
func Inspect(dir, name string) (Snapshot, error) {
	var snap Snapshot
	seg, _, err := attach(dir, name, false, func(_ *shmem.Segment, n *Node) error {
		snap = n.Snapshot()
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, seg.Close()
}

// ForceRelease frees slot index of a channel, for consumers that died
// without closing. It reports whether the slot was in use.
func ForceRelease(dir, name string, index int) (bool, error) {
	var released bool
	seg, _, err := attach(dir, name, false, func(_ *shmem.Segment, n *Node) error {
		released = n.ReleaseSlot(index)
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, seg.Close()
}

// Remove unlinks a channel segment. Unless force is set, a channel with a
// bound sink or attached sources is left alone and ErrBusy is returned.
// Processes still mapping a forcibly removed segment keep working on the
// orphaned file.
func Remove(dir, name string, force bool) error {
	seg, _, err := attach(dir, name, false, func(s *shmem.Segment, n *Node) error {
		if !force && !n.idle() {
			return fmt.Errorf("%w: %s has sink %s and %d sources", ErrBusy, name, n.SinkState(), n.SourceRefCount())
		}
		return s.Unlink()
	})
	if err != nil {
		return err
	}
	return seg.Close()
}
