package stage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/tomb.v2"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/monitoring"
)

// Component is one pipeline stage: it attaches to its channels, then
// turns one input into one output per Process call.
type Component interface {
	Name() string

	// Connect binds sinks and connects sources. It fails fast on
	// capacity or binding errors.
	Connect() error

	// Process handles one sample. ErrStopped and ErrEndOfStream end the
	// loop cleanly; any other error ends it with that error.
	Process() error

	// NotifySelf releases a Process blocked on shared memory. It is called
	// from another goroutine.
	NotifySelf()

	// Close detaches from every channel.
	Close() error
}

// Service is a goroutine supervised alongside the stage loop. Its context
// is cancelled when the stage stops.
type Service func(ctx context.Context) error

type namedService struct {
	name string
	fn   Service
}

type runOptions struct {
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	services []namedService
}

// RunOption configures Run.
type RunOption func(*runOptions)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *zap.Logger) RunOption {
	return func(o *runOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records per-iteration process durations.
func WithMetrics(metrics *monitoring.Metrics) RunOption {
	return func(o *runOptions) { o.metrics = metrics }
}

// WithService runs fn for as long as the stage runs. A service error
// stops the stage.
func WithService(name string, fn Service) RunOption {
	return func(o *runOptions) {
		o.services = append(o.services, namedService{name: name, fn: fn})
	}
}

// Run connects c and calls Process until it reports a terminal error or
// ctx is cancelled. Cancellation is turned into NotifySelf; the caller
// typically derives ctx from SIGINT and SIGTERM. c is closed before Run
// returns, also when Connect fails.
func Run(ctx context.Context, c Component, opts ...RunOption) error {
	o := runOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger

	if err := c.Connect(); err != nil {
		if cerr := c.Close(); cerr != nil {
			log.Warn("Close after failed connect", zap.Error(cerr))
		}
		return fmt.Errorf("connect %s: %w", c.Name(), err)
	}
	log.Info("Stage connected", zap.String("stage", c.Name()))

	t, tctx := tomb.WithContext(ctx)
	var iterations uint64

	loop := func() error {
		for {
			select {
			case <-t.Dying():
				return nil
			default:
			}

			timer := monitoring.NewTimer(o.metrics, c.Name())
			err := c.Process()
			timer.Stop()

			switch {
			case err == nil:
				iterations++
			case dataflow.IsTerminal(err):
				log.Info("Stage finished", zap.String("reason", err.Error()), zap.Uint64("iterations", iterations))
				t.Kill(nil)
				return nil
			default:
				return fmt.Errorf("process %s: %w", c.Name(), err)
			}
		}
	}

	// Everything else is started from the loop goroutine so the tomb
	// cannot have finished before the last Go call.
	t.Go(func() error {
		t.Go(func() error {
			<-t.Dying()
			c.NotifySelf()
			return nil
		})
		for _, svc := range o.services {
			svc := svc
			t.Go(func() error {
				if err := svc.fn(tctx); err != nil {
					return fmt.Errorf("%s: %w", svc.name, err)
				}
				return nil
			})
		}
		return loop()
	})

	err := t.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Info("Stage interrupted", zap.Uint64("iterations", iterations))
		err = nil
	} else if err != nil {
		log.Error("Stage failed", zap.Error(err), zap.Uint64("iterations", iterations))
	}

	if cerr := c.Close(); cerr != nil {
		if err == nil {
			return fmt.Errorf("close %s: %w", c.Name(), cerr)
		}
		log.Warn("Close failed", zap.Error(cerr))
	}
	return err
}
