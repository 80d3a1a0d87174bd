package stage

import (
	"context"
	"flag"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/logging"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/server"
	"github.com/GriffinCanCode/shmflow/internal/shared/id"
)

// Flags are the options every stage binary accepts.
type Flags struct {
	ConfigFile  string
	ConfigKey   string
	MetricsAddr string
	ShmDir      string
	LogLevel    string
}

// RegisterFlags adds the common stage options to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.ConfigFile, "config", "", "Configuration file (.toml, .yaml or .json)")
	fs.StringVar(&f.ConfigKey, "config-key", "", "Table of the configuration file to use")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Diagnostics HTTP address, empty disables it")
	fs.StringVar(&f.ShmDir, "shm-dir", "", "Directory holding shared-memory segments")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	return f
}

// Apply overrides environment configuration with flags that were given.
func (f *Flags) Apply(cfg *config.Config) {
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}
	if f.ShmDir != "" {
		cfg.Shm.Dir = f.ShmDir
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
}

// ParseArgs parses args with fs, allowing flags before, between and after
// positional arguments, and returns the positional ones.
func ParseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// Env is the process-wide state shared by a stage's channels and loop.
type Env struct {
	Component string
	Instance  id.InstanceID
	Config    *config.Config
	Logger    *logging.Logger
	Registry  *prometheus.Registry
	Metrics   *monitoring.Metrics
}

// NewEnv builds logging, metrics and identity for one stage process.
func NewEnv(component string, cfg *config.Config) (*Env, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	base, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	instance := id.NewInstanceID()
	reg := monitoring.NewRegistry()
	return &Env{
		Component: component,
		Instance:  instance,
		Config:    cfg,
		Logger:    base.ForComponent(component, instance.String()),
		Registry:  reg,
		Metrics:   monitoring.NewMetrics(reg),
	}, nil
}

// DataflowOptions returns the options for sinks and sources of this stage.
func (e *Env) DataflowOptions() []dataflow.Option {
	return []dataflow.Option{
		dataflow.WithDir(e.Config.Shm.Dir),
		dataflow.WithLogger(e.Logger.Logger),
		dataflow.WithMetrics(e.Metrics),
	}
}

// RunOptions returns the Run options for this stage, including the
// diagnostics server when an address is configured.
func (e *Env) RunOptions(channels ...string) []RunOption {
	opts := []RunOption{
		WithLogger(e.Logger.Logger),
		WithMetrics(e.Metrics),
	}

	addr := e.Config.Metrics.Addr
	if addr == "" {
		return opts
	}
	srv := server.New(e.Config, server.Identity{
		Component: e.Component,
		Instance:  e.Instance.String(),
		Channels:  channels,
	}, e.Registry, e.Metrics, e.Logger.Logger)
	return append(opts, WithService("diagnostics", func(ctx context.Context) error {
		return srv.Run(ctx, addr)
	}))
}

// Close stops background metric updates and flushes the logger.
func (e *Env) Close() {
	e.Metrics.Close()
	if err := e.Logger.Sync(); err != nil {
		e.Logger.Debug("Logger sync failed", zap.Error(err))
	}
}
