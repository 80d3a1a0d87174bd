package decorator

import (
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// Stage reads a pose and a frame, draws the pose and publishes the frame.
type Stage struct {
	poses  *dataflow.Source[sample.Pose]
	frames *dataflow.Source[sample.Frame]
	sink   *dataflow.Sink[sample.Frame]
	opts   Options
	log    *zap.Logger
}

// NewStage creates a decorator stage.
func NewStage(poses *dataflow.Source[sample.Pose], frames *dataflow.Source[sample.Frame], sink *dataflow.Sink[sample.Frame], opts Options, logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{poses: poses, frames: frames, sink: sink, opts: opts, log: logger}
}

// Name implements stage.Component.
func (s *Stage) Name() string { return "decorate" }

// Connect binds the output, then connects both inputs.
func (s *Stage) Connect() error {
	if err := s.sink.Bind(); err != nil {
		return err
	}
	if err := s.poses.Connect(); err != nil {
		return err
	}
	return s.frames.Connect()
}

// Process pairs the next pose with the next frame. When either of them
// cannot be decoded the pair is dropped, keeping the two streams aligned.
func (s *Stage) Process() error {
	p, perr := s.poses.Get()
	if perr != nil && !errors.Is(perr, sample.ErrMalformed) {
		return perr
	}
	f, ferr := s.frames.Get()
	if ferr != nil && !errors.Is(ferr, sample.ErrMalformed) {
		return ferr
	}
	if err := errors.Join(perr, ferr); err != nil {
		s.log.Warn("Skipping undecodable sample", zap.Error(err))
		return nil
	}
	return s.sink.Publish(Decorate(f, p, s.opts))
}

// NotifySelf releases both sources and the sink.
func (s *Stage) NotifySelf() {
	s.frames.NotifySelf()
	s.poses.NotifySelf()
	s.sink.NotifySelf()
}

// Close detaches from every channel.
func (s *Stage) Close() error {
	return errors.Join(s.frames.Close(), s.poses.Close(), s.sink.Close())
}
