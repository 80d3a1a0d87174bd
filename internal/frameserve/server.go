package frameserve

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// Server publishes frames from a Producer at a fixed rate.
type Server struct {
	name     string
	producer Producer
	sink     *dataflow.Sink[sample.Frame]
	limiter  *rate.Limiter
	period   time.Duration
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	counter uint64
}

// NewServer paces producer at fps frames per second; fps <= 0 publishes
// as fast as the sources read.
func NewServer(name string, producer Producer, sink *dataflow.Sink[sample.Frame], fps float64) *Server {
	limit := rate.Inf
	var period time.Duration
	if fps > 0 {
		limit = rate.Limit(fps)
		period = time.Duration(float64(time.Second) / fps)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		name:     name,
		producer: producer,
		sink:     sink,
		limiter:  rate.NewLimiter(limit, 1),
		period:   period,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Name implements stage.Component.
func (s *Server) Name() string { return s.name }

// Connect binds the frame sink.
func (s *Server) Connect() error { return s.sink.Bind() }

// Process publishes the next frame once the rate allows it.
func (s *Server) Process() error {
	if err := s.limiter.Wait(s.ctx); err != nil {
		return dataflow.ErrStopped
	}

	f, err := s.producer.Next()
	if err != nil {
		return err
	}
	s.counter++
	f.Info = sample.Info{Counter: s.counter, Timestamp: s.now(), Period: s.period}
	return s.sink.Publish(f)
}

// NotifySelf releases the pacing wait and a blocked publish.
func (s *Server) NotifySelf() {
	s.cancel()
	s.sink.NotifySelf()
}

// Close releases the producer and the sink.
func (s *Server) Close() error {
	s.cancel()
	return errors.Join(s.producer.Close(), s.sink.Close())
}
