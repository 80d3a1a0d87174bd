package dataflow

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/shmem"
)

// Source is one consumer of a named channel. It holds a single slot for
// its whole life and must be driven from one goroutine; only NotifySelf may
// be called concurrently.
type Source[T any] struct {
	name  string
	codec Codec[T]
	opts  options
	log   *zap.Logger

	seg  *shmem.Segment
	node *Node
	slot int
	gen  uint32

	// last is the counter this source acknowledged most recently.
	last     uint64
	detaches uint32

	mu      sync.Mutex
	stopped atomic.Bool
	closed  bool
}

// NewSource creates an unconnected source for the named channel.
func NewSource[T any](name string, codec Codec[T], opts ...Option) *Source[T] {
	o := buildOptions(opts)
	return &Source[T]{
		name:  name,
		codec: codec,
		opts:  o,
		log:   o.logger.With(zap.String("channel", name), zap.String("role", "source")),
		slot:  -1,
	}
}

// Name returns the channel name.
func (s *Source[T]) Name() string { return s.name }

// Slot returns the slot index held by this source, or -1.
func (s *Source[T]) Slot() int { return s.slot }

// Connect attaches to the channel, creating it if no sink has yet, and
// acquires a slot. Samples published before Connect are not delivered.
func (s *Source[T]) Connect() error {
	if s.node != nil {
		return fmt.Errorf("connect %s: %w", s.name, ErrAlreadyConnected)
	}

	var (
		slot     int
		gen      uint32
		acked    uint64
		detaches uint32
	)
	seg, node, err := attach(s.opts.dir, s.name, true, func(_ *shmem.Segment, n *Node) error {
		var err error
		slot, acked, err = n.acquire()
		if err != nil {
			return err
		}
		gen = n.slots[slot].generation.Load()
		detaches = n.detaches.Load()
		return nil
	})
	if err != nil {
		s.opts.metrics.RecordAttachError(s.name, attachReason(err))
		return fmt.Errorf("connect %s: %w", s.name, err)
	}

	s.seg, s.node = seg, node
	s.slot, s.gen, s.last, s.detaches = slot, gen, acked, detaches
	s.log.Info("Source connected",
		zap.Int("slot", slot),
		zap.Uint64("counter", acked),
		zap.Stringer("sink", node.SinkState()))
	return nil
}

// Get blocks until a sample newer than the last one read is published,
// then returns a copy of it and acknowledges it to the sink. It returns
// ErrStopped after NotifySelf and ErrEndOfStream when the sink detached
// with nothing left to read; Get may be called again after end of stream
// to wait for the next sink to bind. After Close it returns ErrStopped.
func (s *Source[T]) Get() (T, error) {
	var zero T
	if s.node == nil {
		return zero, ErrNotConnected
	}
	if s.stopped.Load() {
		return zero, ErrStopped
	}

	start := time.Now()
	var counter uint64
	s.node.writeReady.wait(func() bool {
		counter = s.node.SampleCounter()
		return s.stopped.Load() || counter > s.last || s.node.detaches.Load() != s.detaches
	})

	switch {
	case s.stopped.Load():
		return zero, ErrStopped
	case counter > s.last:
		return s.read(counter, time.Since(start))
	default:
		s.detaches = s.node.detaches.Load()
		s.log.Info("End of stream", zap.Uint64("counter", counter))
		return zero, ErrEndOfStream
	}
}

// read decodes sample counter and acknowledges it, even when decoding
// fails, so a bad sample cannot stall the sink. A sample published by a
// later binding means the end of the earlier one was already passed.
func (s *Source[T]) read(counter uint64, wait time.Duration) (T, error) {
	epoch := s.node.epoch.Load()
	defer func() {
		s.last = counter
		s.detaches = epoch
		s.node.slots[s.slot].readDone.raise(counter)
	}()

	var zero T
	n := int(s.node.payloadLen.Load())
	buf, err := s.seg.Data(n)
	if err != nil {
		return zero, fmt.Errorf("read %s sample %d: %w", s.name, counter, err)
	}
	v, err := s.codec.Decode(buf)
	if err != nil {
		return zero, fmt.Errorf("decode %s sample %d: %w", s.name, counter, err)
	}

	s.opts.metrics.RecordConsume(s.name, wait)
	if ce := s.log.Check(zap.DebugLevel, "Sample read"); ce != nil {
		ce.Write(zap.Uint64("counter", counter), zap.Int("bytes", n), zap.Duration("wait", wait))
	}
	return v, nil
}

// Counter returns the sample counter of the last sample read.
func (s *Source[T]) Counter() uint64 { return s.last }

// NotifySelf makes a blocked or future Get return ErrStopped. Safe to call
// from any goroutine, more than once.
func (s *Source[T]) NotifySelf() {
	if s.stopped.Swap(true) || s.node == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.node.writeReady.wake()
	}
}

// Close releases the slot and unmaps the channel. The segment is removed
// when neither a sink nor other sources remain. Get must not be running.
func (s *Source[T]) Close() error {
	if s.node == nil {
		return nil
	}
	s.stopped.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	slot, gen := s.slot, s.gen
	removed, err := detach(s.seg, s.node, func() {
		if !s.node.releaseOwned(slot, gen) {
			s.log.Warn("Slot was released by someone else", zap.Int("slot", slot))
		}
	})
	s.slot = -1
	if err != nil {
		return fmt.Errorf("close source %s: %w", s.name, err)
	}
	s.log.Info("Source closed", zap.Int("slot", slot), zap.Bool("removed", removed))
	return nil
}
