package dataflow

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/shmem"
)

// Sink is the single producer of a named channel.
type Sink[T any] struct {
	name  string
	codec Codec[T]
	opts  options
	log   *zap.Logger

	seg     *shmem.Segment
	node    *Node
	session uuid.UUID

	// mu serializes the buffer write in Publish against unbinding.
	mu         sync.Mutex
	stopped    atomic.Bool
	unbound    bool
	closed     bool
	payloadCap int
}

// NewSink creates an unbound sink for the named channel.
func NewSink[T any](name string, codec Codec[T], opts ...Option) *Sink[T] {
	o := buildOptions(opts)
	return &Sink[T]{
		name:  name,
		codec: codec,
		opts:  o,
		log:   o.logger.With(zap.String("channel", name), zap.String("role", "sink")),
	}
}

// Name returns the channel name.
func (s *Sink[T]) Name() string { return s.name }

// Session returns the identity of this sink's binding.
func (s *Sink[T]) Session() uuid.UUID { return s.session }

// Bind creates or opens the channel and claims its sink state. It fails
// with ErrAlreadyBound when another sink holds the channel.
func (s *Sink[T]) Bind() error {
	if s.node != nil {
		return fmt.Errorf("bind %s: %w", s.name, ErrAlreadyBound)
	}

	session := uuid.New()
	seg, node, err := attach(s.opts.dir, s.name, true, func(_ *shmem.Segment, n *Node) error {
		if err := n.BindSink(); err != nil {
			return err
		}
		n.setSession(session)
		return nil
	})
	if err != nil {
		s.opts.metrics.RecordAttachError(s.name, attachReason(err))
		return fmt.Errorf("bind %s: %w", s.name, err)
	}

	s.seg, s.node, s.session = seg, node, session
	s.payloadCap = int(node.payloadCap.Load())
	s.log.Info("Sink bound",
		zap.String("session", session.String()),
		zap.Uint64("counter", node.SampleCounter()),
		zap.Int("sources", node.SourceRefCount()))
	return nil
}

// Node exposes the channel's Node for inspection.
func (s *Sink[T]) Node() *Node { return s.node }

// Publish waits until every attached source has read the previous sample,
// writes v into the shared buffer and announces it. It blocks for as long
// as the slowest source takes; NotifySelf releases it with ErrStopped.
func (s *Sink[T]) Publish(v T) error {
	if s.node == nil {
		return ErrNotConnected
	}
	if s.stopped.Load() {
		return ErrStopped
	}

	start := time.Now()
	counter := s.node.SampleCounter()
	for i := range s.node.slots {
		sl := &s.node.slots[i]
		sl.readDone.wait(func() bool {
			return s.stopped.Load() || sl.inUse.Load() == 0 || sl.readDone.Value() >= counter
		})
	}
	wait := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return ErrStopped
	}

	n := s.codec.Size(v)
	buf, err := s.payload(n)
	if err != nil {
		return err
	}
	if err := s.codec.Encode(buf, v); err != nil {
		return fmt.Errorf("encode sample for %s: %w", s.name, err)
	}
	s.node.payloadLen.Store(uint64(n))
	s.node.epoch.Store(s.node.detaches.Load())
	s.node.writeReady.raise(counter + 1)

	s.opts.metrics.RecordPublish(s.name, n, wait)
	s.opts.metrics.SetSourcesActive(s.name, s.node.SourceRefCount())
	if ce := s.log.Check(zap.DebugLevel, "Sample published"); ce != nil {
		ce.Write(zap.Uint64("counter", counter+1), zap.Int("bytes", n), zap.Duration("wait", wait))
	}
	return nil
}

// payload returns an n byte window of the data region, growing the
// segment first when it is too small. The file only grows.
func (s *Sink[T]) payload(n int) ([]byte, error) {
	if n > s.payloadCap {
		err := s.seg.WithLock(func() error {
			if err := s.seg.Grow(n); err != nil {
				return err
			}
			s.node.payloadCap.Store(uint64(n))
			return nil
		})
		if err != nil {
			return nil, err
		}
		s.log.Debug("Payload grown", zap.Int("from", s.payloadCap), zap.Int("to", n))
		s.payloadCap = n
	}
	return s.seg.Data(n)
}

// NotifySelf stops the sink: a blocked Publish returns ErrStopped, the sink
// binding is released and sources observe the end of the stream once they
// have read everything. Safe to call from any goroutine, more than once.
func (s *Sink[T]) NotifySelf() {
	if s.stopped.Swap(true) || s.node == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wakePublisher()
	s.unbindLocked()
}

// wakePublisher releases a Publish blocked on any slot.
func (s *Sink[T]) wakePublisher() {
	for i := range s.node.slots {
		s.node.slots[i].readDone.wake()
	}
}

func (s *Sink[T]) unbindLocked() {
	if s.unbound {
		return
	}
	s.unbound = true
	if err := s.seg.WithLock(func() error {
		s.node.UnbindSink()
		return nil
	}); err != nil {
		s.log.Warn("Failed to lock segment for unbind", zap.Error(err))
		s.node.UnbindSink()
	}
	s.log.Info("Sink unbound", zap.Uint64("counter", s.node.SampleCounter()))
}

// Close unbinds the sink if needed and unmaps the channel. The segment is
// removed when no sources remain. A Publish must not be running.
func (s *Sink[T]) Close() error {
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
	s.wakePublisher()

	removed, err := detach(s.seg, s.node, func() {
		if !s.unbound {
			s.unbound = true
			s.node.UnbindSink()
		}
	})
	if err != nil {
		return fmt.Errorf("close sink %s: %w", s.name, err)
	}
	s.log.Debug("Sink closed", zap.Bool("removed", removed))
	return nil
}

func attachReason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyBound):
		return "already_bound"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrLayoutMismatch):
		return "layout"
	default:
		return "io"
	}
}
