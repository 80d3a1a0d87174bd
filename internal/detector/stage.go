package detector

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// Stage reads frames, detects one object per frame and publishes its
// pose.
type Stage struct {
	det     Detector
	source  *dataflow.Source[sample.Frame]
	sink    *dataflow.Sink[sample.Pose]
	tracker Tracker
	log     *zap.Logger
}

// NewStage wires det between a frame source and a pose sink.
func NewStage(det Detector, source *dataflow.Source[sample.Frame], sink *dataflow.Sink[sample.Pose], logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{det: det, source: source, sink: sink, log: logger}
}

// Name implements stage.Component.
func (s *Stage) Name() string { return "posidet." + s.det.Name() }

// Connect binds the pose sink, then connects to the frame source.
func (s *Stage) Connect() error {
	if err := s.sink.Bind(); err != nil {
		return err
	}
	return s.source.Connect()
}

// Process handles one frame.
func (s *Stage) Process() error {
	f, err := s.source.Get()
	if errors.Is(err, sample.ErrMalformed) {
		s.log.Warn("Skipping undecodable frame", zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	p, err := s.det.Detect(f)
	if err != nil {
		if errors.Is(err, sample.ErrMalformed) {
			s.log.Warn("Skipping malformed frame", zap.Uint64("counter", f.Counter), zap.Error(err))
			return nil
		}
		return fmt.Errorf("detect: %w", err)
	}
	p.Info = f.Info
	s.tracker.Update(&p)
	return s.sink.Publish(p)
}

// NotifySelf releases both the frame wait and the publish wait.
func (s *Stage) NotifySelf() {
	s.source.NotifySelf()
	s.sink.NotifySelf()
}

// Close detaches from both channels.
func (s *Stage) Close() error {
	return errors.Join(s.source.Close(), s.sink.Close())
}
