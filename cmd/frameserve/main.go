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
	"github.com/GriffinCanCode/shmflow/internal/frameserve"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmflow/internal/sample"
	"github.com/GriffinCanCode/shmflow/internal/stage"
)

const usage = `Usage: frameserve TYPE SINK [options]
Serve frames to SINK.

TYPE
  test: synthetic moving blob
  file: images from a directory

SINK
  Name of the channel to publish frames to (e.g. raw).

Options:
`

var errUsage = errors.New("invalid arguments")

// options is the frameserve section of a config file.
type options struct {
	FPS     float64 `json:"fps"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Color   string  `json:"color"`
	Radius  int     `json:"radius"`
	Orbit   int     `json:"orbit"`
	Dir     string  `json:"dir"`
	Pattern string  `json:"pattern"`
	Loop    bool    `json:"loop"`
}

func (o options) pattern() frameserve.PatternConfig {
	return frameserve.PatternConfig{Width: o.Width, Height: o.Height, Format: o.Color, Radius: o.Radius, Orbit: o.Orbit}
}

func (o options) imageDir() frameserve.ImageDirConfig {
	return frameserve.ImageDirConfig{Dir: o.Dir, Pattern: o.Pattern, Format: o.Color, Loop: o.Loop}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("frameserve: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("frameserve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	common := stage.RegisterFlags(fs)

	def := frameserve.DefaultPatternConfig()
	opts := options{
		FPS:    30,
		Width:  def.Width,
		Height: def.Height,
		Color:  def.Format,
		Radius: def.Radius,
		Orbit:  def.Orbit,
	}
	fs.Float64Var(&opts.FPS, "fps", opts.FPS, "Frames per second, 0 for as fast as sources read")
	fs.IntVar(&opts.Width, "width", opts.Width, "Test pattern width")
	fs.IntVar(&opts.Height, "height", opts.Height, "Test pattern height")
	fs.IntVar(&opts.Radius, "radius", opts.Radius, "Test pattern blob radius")
	fs.IntVar(&opts.Orbit, "orbit", opts.Orbit, "Test pattern frames per revolution")
	fs.StringVar(&opts.Color, "color", opts.Color, "Pixel format: mono, rgb or bgr")
	fs.StringVar(&opts.Dir, "dir", "", "Image directory (file)")
	fs.StringVar(&opts.Pattern, "pattern", "", "Glob selecting images below -dir (file)")
	fs.BoolVar(&opts.Loop, "loop", false, "Restart at the first image (file)")

	pos, err := stage.ParseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		fs.Usage()
		return errUsage
	}
	kind, sinkName := pos[0], pos[1]

	if err := config.ApplyFile(fs, common.ConfigFile, common.ConfigKey, &opts); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	common.Apply(cfg)

	env, err := stage.NewEnv("frameserve", cfg)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.Logger

	var producer frameserve.Producer
	switch kind {
	case "test":
		producer, err = frameserve.NewPattern(opts.pattern())
	case "file":
		producer, err = frameserve.NewImageDir(opts.imageDir(), logger.Logger)
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown TYPE %q", errUsage, kind)
	}
	if err != nil {
		return err
	}

	sink := dataflow.NewSink[sample.Frame](sinkName, sample.FrameCodec{}, env.DataflowOptions()...)
	srv := frameserve.NewServer("frameserve."+kind, producer, sink, opts.FPS)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Serving frames", zap.String("type", kind), zap.String("sink", sinkName), zap.Float64("fps", opts.FPS))
	return stage.Run(ctx, srv, env.RunOptions(sinkName)...)
}
