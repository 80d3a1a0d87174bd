package dataflow

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shmflow/internal/shmem"
)

type options struct {
	dir     string
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// Option configures a Sink or Source.
type Option func(*options)

// WithDir sets the directory holding segment files.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records channel metrics.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

func buildOptions(opts []Option) options {
	o := options{
		dir:    shmem.DefaultDir,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
