package viewer

import (
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// Viewer is the stage that reads a channel and shows it through a Display.
type Viewer[T any] struct {
	name    string
	source  *dataflow.Source[T]
	display *Display[T]
}

// New creates a viewer stage reading source.
func New[T any](name string, source *dataflow.Source[T], display *Display[T]) *Viewer[T] {
	return &Viewer[T]{name: name, source: source, display: display}
}

// Name implements stage.Component.
func (v *Viewer[T]) Name() string { return v.name }

// Connect attaches to the source and starts rendering.
func (v *Viewer[T]) Connect() error {
	if err := v.source.Connect(); err != nil {
		return err
	}
	v.display.Start()
	return nil
}

// Process hands one sample to the display. It never waits for rendering.
func (v *Viewer[T]) Process() error {
	s, err := v.source.Get()
	if errors.Is(err, sample.ErrMalformed) {
		v.display.log.Warn("Skipping undecodable sample", zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	v.display.Offer(s)
	return nil
}

// NotifySelf releases a blocked Get.
func (v *Viewer[T]) NotifySelf() { v.source.NotifySelf() }

// Close stops the display and detaches from the channel.
func (v *Viewer[T]) Close() error {
	return errors.Join(v.display.Stop(), v.source.Close())
}
