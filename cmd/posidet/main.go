package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmflow/internal/dataflow"
	"github.com/GriffinCanCode/shmflow/internal/detector"
	"github.com/GriffinCanCode/shmflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmflow/internal/sample"
	"github.com/GriffinCanCode/shmflow/internal/stage"
)

const usage = `Usage: posidet TYPE SOURCE SINK [options]
Detect the object position in frames from SOURCE and publish poses to SINK.

TYPE
  thresh: luma threshold blob detector
  diff:   frame difference motion detector
  hsv:    color range blob detector
  aruco:  marker board pose estimator

SOURCE
  Name of the frame channel to read (e.g. raw).

SINK
  Name of the pose channel to publish to (e.g. pos).

Options:
`

var errUsage = errors.New("invalid arguments")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("posidet: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("posidet", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	// TYPE decides which options exist, so it must come first.
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fs.Usage()
		return errUsage
	}
	kind := args[0]

	dcfg := detector.DefaultConfig()
	section, err := dcfg.Section(kind)
	if err != nil {
		fs.Usage()
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	common := stage.RegisterFlags(fs)
	registerDetectorFlags(fs, kind, &dcfg)

	pos, err := stage.ParseArgs(fs, args[1:])
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		fs.Usage()
		return errUsage
	}
	sourceName, sinkName := pos[0], pos[1]

	if err := config.ApplyFile(fs, common.ConfigFile, common.ConfigKey, section); err != nil {
		return err
	}

	// Validation happens here, before any channel is attached.
	det, err := detector.New(kind, dcfg, nil)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	common.Apply(cfg)

	env, err := stage.NewEnv("posidet", cfg)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.Logger

	source := dataflow.NewSource[sample.Frame](sourceName, sample.FrameCodec{}, env.DataflowOptions()...)
	sink := dataflow.NewSink[sample.Pose](sinkName, sample.PoseCodec{}, env.DataflowOptions()...)
	st := detector.NewStage(det, source, sink, logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Detecting positions",
		zap.String("type", kind),
		zap.String("source", sourceName),
		zap.String("sink", sinkName),
	)
	return stage.Run(ctx, st, env.RunOptions(sourceName, sinkName)...)
}

func registerArea(fs *flag.FlagSet, a *detector.AreaBounds) {
	fs.IntVar(&a.Min, "min-area", a.Min, "Minimum blob area in pixels")
	fs.IntVar(&a.Max, "max-area", a.Max, "Maximum blob area in pixels, 0 for no limit")
}

func registerDetectorFlags(fs *flag.FlagSet, kind string, c *detector.Config) {
	switch kind {
	case "thresh":
		t := &c.Threshold
		fs.IntVar(&t.Min, "min-value", t.Min, "Minimum luma of object pixels")
		fs.IntVar(&t.Max, "max-value", t.Max, "Maximum luma of object pixels")
		registerArea(fs, &t.AreaBounds)
	case "diff":
		d := &c.Difference
		fs.IntVar(&d.Threshold, "diff-threshold", d.Threshold, "Minimum luma change of moving pixels")
		registerArea(fs, &d.AreaBounds)
	case "hsv":
		h := &c.HSV
		fs.IntVar(&h.HMin, "h-min", h.HMin, "Minimum hue in degrees")
		fs.IntVar(&h.HMax, "h-max", h.HMax, "Maximum hue in degrees, below h-min to wrap through red")
		fs.IntVar(&h.SMin, "s-min", h.SMin, "Minimum saturation")
		fs.IntVar(&h.SMax, "s-max", h.SMax, "Maximum saturation")
		fs.IntVar(&h.VMin, "v-min", h.VMin, "Minimum value")
		fs.IntVar(&h.VMax, "v-max", h.VMax, "Maximum value")
		registerArea(fs, &h.AreaBounds)
	case "aruco":
		a := &c.Aruco
		fs.StringVar(&a.Dictionary, "dictionary", a.Dictionary,
			"Marker dictionary ("+strings.Join(detector.Dictionaries(), ", ")+")")
		fs.Var(&a.BoardSize, "board-size", "Markers along X and Y, e.g. 4,3")
		fs.Float64Var(&a.Length, "length", a.Length, "Marker side in meters")
		fs.Float64Var(&a.Separation, "separation", a.Separation, "Gap between markers in meters")
		fs.Var(&a.CameraMatrix, "camera-matrix", "3x3 camera matrix, row-major, 9 values")
		fs.Var(&a.DistortionCoeffs, "distortion-coeffs", "5 to 8 distortion coefficients")
		fs.Var(&a.ThreshParams, "thresh-params", "Adaptive threshold window min,max,step")
		fs.Var(&a.ContourParams, "contour-params", "Marker perimeter range min,max")
		fs.Float64Var(&a.MinCornerDist, "min-corner-dist", a.MinCornerDist, "Minimum corner distance rate")
		fs.Float64Var(&a.MinMarkerDist, "min-marker-dist", a.MinMarkerDist, "Minimum marker distance rate")
		fs.IntVar(&a.MinBorderDist, "min-border-dist", a.MinBorderDist, "Minimum distance to the frame border in pixels")
		fs.IntVar(&a.PixelsPerCell, "pixels-per-cell", a.PixelsPerCell, "Pixels per marker cell when decoding")
		fs.Float64Var(&a.BorderErrorRate, "border-error-rate", a.BorderErrorRate, "Tolerated border bit error rate")
		fs.BoolVar(&a.RefineDetection, "refine-detection", a.RefineDetection, "Refine corners to subpixel accuracy")
	}
}
