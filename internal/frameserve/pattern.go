package frameserve

import (
	"fmt"
	"image/color"
	"math"

	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// Producer yields the frames a frame server publishes. Next returns
// dataflow.ErrEndOfStream when there are no more frames.
type Producer interface {
	Next() (sample.Frame, error)
	Close() error
}

// PatternConfig describes the synthetic test pattern.
type PatternConfig struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"color"`
	// Radius of the moving blob in pixels.
	Radius int `json:"radius"`
	// Orbit is the number of frames per revolution of the blob.
	Orbit int `json:"orbit"`
}

// DefaultPatternConfig returns a small mono pattern.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{Width: 320, Height: 240, Format: "mono", Radius: 8, Orbit: 120}
}

// Pattern draws a bright blob circling the frame center on a dark
// background. Mono frames show it white, color frames red, so every blob
// detector can find it.
type Pattern struct {
	cfg    PatternConfig
	format sample.PixelFormat
	n      uint64
}

// NewPattern validates cfg and creates the pattern.
func NewPattern(cfg PatternConfig) (*Pattern, error) {
	format, err := sample.ParsePixelFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, fmt.Errorf("pattern size %dx%d must be positive", cfg.Width, cfg.Height)
	}
	if cfg.Radius < 1 || cfg.Orbit < 1 {
		return nil, fmt.Errorf("pattern radius and orbit must be positive")
	}
	return &Pattern{cfg: cfg, format: format}, nil
}

// Center returns the blob center in frame i.
func (p *Pattern) Center(i uint64) (float64, float64) {
	w, h := float64(p.cfg.Width), float64(p.cfg.Height)
	orbit := math.Min(w, h)/2 - float64(p.cfg.Radius) - 1
	if orbit < 0 {
		orbit = 0
	}
	a := 2 * math.Pi * float64(i%uint64(p.cfg.Orbit)) / float64(p.cfg.Orbit)
	return w/2 + orbit*math.Cos(a), h/2 + orbit*math.Sin(a)
}

// Next implements Producer. The pattern never ends.
func (p *Pattern) Next() (sample.Frame, error) {
	f := sample.NewFrame(p.cfg.Width, p.cfg.Height, p.format)
	cx, cy := p.Center(p.n)
	p.n++

	var c color.Color = color.White
	if p.format != sample.Mono8 {
		c = color.RGBA{R: 255, A: 255}
	}
	r := float64(p.cfg.Radius)
	for y := int(cy - r); y <= int(cy+r); y++ {
		for x := int(cx - r); x <= int(cx+r); x++ {
			if math.Hypot(float64(x)-cx, float64(y)-cy) <= r {
				f.Set(x, y, c)
			}
		}
	}
	return f, nil
}

// Close implements Producer.
func (p *Pattern) Close() error { return nil }
