package dataflow

import "errors"

var (
	// ErrCapacityExceeded is returned when every slot of a Node is in use.
	ErrCapacityExceeded = errors.New("slot table full")

	// ErrOutOfRange is returned for a barrier lookup outside the active slots.
	ErrOutOfRange = errors.New("slot index out of range")

	// ErrAlreadyBound is returned when a second sink binds a channel.
	ErrAlreadyBound = errors.New("channel already has a bound sink")

	// ErrAlreadyConnected is returned when a Source connects twice.
	ErrAlreadyConnected = errors.New("source already connected")

	// ErrNotConnected is returned by Get and Publish before Connect or Bind.
	ErrNotConnected = errors.New("not connected")

	// ErrLayoutMismatch is returned when a segment was created by a build
	// with a different Node layout.
	ErrLayoutMismatch = errors.New("node layout mismatch")

	// ErrBusy is returned when removing a channel that is still attached.
	ErrBusy = errors.New("channel in use")

	// ErrStopped is returned from a blocking call released by NotifySelf.
	ErrStopped = errors.New("stopped")

	// ErrEndOfStream is returned by Get once the sink detached and every
	// published sample was read.
	ErrEndOfStream = errors.New("end of stream")
)

// IsTerminal reports whether err ends a stage loop cleanly.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrStopped) || errors.Is(err, ErrEndOfStream)
}
