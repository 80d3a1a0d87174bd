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

	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/decorator"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmflow/internal/sample"
	"github.com/GriffinCanCode/shmflow/internal/stage"
)

const usage = `Usage: decorate POSITION_SOURCE FRAME_SOURCE FRAME_SINK [options]
Draw positions from POSITION_SOURCE onto frames from FRAME_SOURCE and
publish the result to FRAME_SINK.

Options:
`

var errUsage = errors.New("invalid arguments")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("decorate: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("decorate", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	common := stage.RegisterFlags(fs)

	opts := decorator.DefaultOptions()
	fs.IntVar(&opts.CircleRadius, "circle-radius", opts.CircleRadius, "Radius of the position circle in pixels")
	fs.Float64Var(&opts.HeadingLength, "heading-length", opts.HeadingLength, "Half length of the heading line in pixels")
	fs.Float64Var(&opts.VelocityScale, "velocity-scale", opts.VelocityScale, "Velocity line length per pixel/second")
	fs.IntVar(&opts.LineWidth, "line-width", opts.LineWidth, "Line width in pixels")
	fs.BoolVar(&opts.SampleCode, "sample-code", opts.SampleCode, "Draw the frame counter as a binary bar")
	fs.IntVar(&opts.CodeCell, "code-cell", opts.CodeCell, "Cell size of the sample code in pixels")

	pos, err := stage.ParseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 3 {
		fs.Usage()
		return errUsage
	}
	poseName, frameName, sinkName := pos[0], pos[1], pos[2]

	if err := config.ApplyFile(fs, common.ConfigFile, common.ConfigKey, &opts); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	common.Apply(cfg)

	env, err := stage.NewEnv("decorate", cfg)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.Logger

	dopts := env.DataflowOptions()
	st := decorator.NewStage(
		dataflow.NewSource[sample.Pose](poseName, sample.PoseCodec{}, dopts...),
		dataflow.NewSource[sample.Frame](frameName, sample.FrameCodec{}, dopts...),
		dataflow.NewSink[sample.Frame](sinkName, sample.FrameCodec{}, dopts...),
		opts,
		logger.Logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Decorating frames",
		zap.String("poses", poseName),
		zap.String("frames", frameName),
		zap.String("sink", sinkName),
	)
	return stage.Run(ctx, st, env.RunOptions(poseName, frameName, sinkName)...)
}
