package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmflow/internal/sample"
	"github.com/GriffinCanCode/shmflow/internal/stage"
	"github.com/GriffinCanCode/shmflow/internal/viewer"
)

const usage = `Usage: view TYPE SOURCE [options]
Display samples from SOURCE.

TYPE
  frame: render frames as a PNG snapshot or ASCII art
  pose:  print poses as JSON lines

Options:
`

var errUsage = errors.New("invalid arguments")

// options is the view section of a config file.
type options struct {
	Renderer    string `json:"renderer"`
	Out         string `json:"out"`
	Cols        int    `json:"cols"`
	MinUpdateMS int    `json:"min-update-ms"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("view: %v", err)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	common := stage.RegisterFlags(fs)

	opts := options{Renderer: "ascii", Out: "view.png", MinUpdateMS: cfg.Viewer.MinUpdateMS}
	fs.StringVar(&opts.Renderer, "renderer", opts.Renderer, "Frame renderer: snapshot or ascii")
	fs.StringVar(&opts.Out, "out", opts.Out, "Snapshot file (snapshot renderer)")
	fs.IntVar(&opts.Cols, "cols", 0, "Text columns (ascii renderer), 0 to fit")
	fs.IntVar(&opts.MinUpdateMS, "min-update-ms", opts.MinUpdateMS, "Minimum time between two renders in milliseconds")

	pos, err := stage.ParseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		fs.Usage()
		return errUsage
	}
	kind, sourceName := pos[0], pos[1]

	if err := config.ApplyFile(fs, common.ConfigFile, common.ConfigKey, &opts); err != nil {
		return err
	}
	if opts.MinUpdateMS < 0 {
		return fmt.Errorf("min-update-ms must not be negative")
	}
	common.Apply(cfg)

	env, err := stage.NewEnv("view", cfg)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.Logger

	displayOpts := []viewer.Option{
		viewer.WithLogger(logger.Logger),
		viewer.WithMetrics(env.Metrics),
		viewer.WithMinUpdatePeriod(time.Duration(opts.MinUpdateMS) * time.Millisecond),
	}

	var comp stage.Component
	switch kind {
	case "frame":
		var r viewer.Renderer[sample.Frame]
		switch opts.Renderer {
		case "snapshot":
			r = viewer.SnapshotRenderer{Path: opts.Out}
		case "ascii":
			r = viewer.ASCIIRenderer{W: os.Stdout, Cols: opts.Cols}
		default:
			return fmt.Errorf("%w: unknown renderer %q", errUsage, opts.Renderer)
		}
		name := "view.frame." + opts.Renderer
		comp = viewer.New(name,
			dataflow.NewSource[sample.Frame](sourceName, sample.FrameCodec{}, env.DataflowOptions()...),
			viewer.NewDisplay[sample.Frame](name, r, displayOpts...),
		)
	case "pose":
		name := "view.pose"
		comp = viewer.New(name,
			dataflow.NewSource[sample.Pose](sourceName, sample.PoseCodec{}, env.DataflowOptions()...),
			viewer.NewDisplay[sample.Pose](name, viewer.NewPoseRenderer(os.Stdout), displayOpts...),
		)
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown TYPE %q", errUsage, kind)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Viewing", zap.String("type", kind), zap.String("source", sourceName))
	return stage.Run(ctx, comp, env.RunOptions(sourceName)...)
}
