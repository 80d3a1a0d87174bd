package decorator

import (
	"fmt"
	"image/color"

	"github.com/GriffinCanCode/shmflow/internal/sample"
)

var (
	positionColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	headingColor  = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	velocityColor = color.RGBA{G: 255, A: 255}
	codeOn        = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	codeOff       = color.RGBA{A: 255}
)

// Options controls what is drawn.
type Options struct {
	CircleRadius  int     `json:"circle-radius"`
	HeadingLength float64 `json:"heading-length"`
	// VelocityScale converts velocity to line length in pixels.
	VelocityScale float64 `json:"velocity-scale"`
	LineWidth     int     `json:"line-width"`
	// SampleCode draws the frame counter as a 32 bit binary bar along the
	// bottom edge. Cells shrink to fit narrow frames.
	SampleCode bool `json:"sample-code"`
	CodeCell   int  `json:"code-cell"`
}

// DefaultOptions returns the drawing defaults.
func DefaultOptions() Options {
	return Options{
		CircleRadius:  10,
		HeadingLength: 25,
		VelocityScale: 0.1,
		LineWidth:     2,
		CodeCell:      4,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.CircleRadius < 0 || o.HeadingLength < 0 || o.LineWidth < 1 || o.CodeCell < 1 {
		return fmt.Errorf("invalid decorator options: radius, heading length must be >= 0 and line width, code cell >= 1")
	}
	return nil
}

// Decorate draws p onto a copy of f. Only poses in pixel units can be
// placed in the image; others leave the frame unmarked apart from the
// sample code.
func Decorate(f sample.Frame, p sample.Pose, o Options) sample.Frame {
	out := f.Clone()
	if p.Found && p.Unit == sample.Pixels {
		x, y := p.XY()
		cx, cy := round(x), round(y)
		circle(out, cx, cy, o.CircleRadius, o.LineWidth, positionColor)

		if p.HeadingValid {
			hx, hy := o.HeadingLength*p.Heading[0], o.HeadingLength*p.Heading[1]
			line(out, round(x-hx), round(y-hy), round(x+hx), round(y+hy), o.LineWidth, headingColor)
		}
		if p.VelocityValid {
			vx, vy := o.VelocityScale*p.Velocity[0], o.VelocityScale*p.Velocity[1]
			line(out, cx, cy, round(x+vx), round(y+vy), o.LineWidth, velocityColor)
		}
	}
	if o.SampleCode {
		sampleCode(out, f.Counter, o.CodeCell)
	}
	return out
}

// sampleCode draws counter's low 32 bits, most significant first.
func sampleCode(f sample.Frame, counter uint64, cell int) {
	if cell*32 > f.Width {
		cell = max(1, f.Width/32)
	}
	y0 := f.Height - cell
	for bit := 0; bit < 32; bit++ {
		c := codeOff
		if counter&(1<<(31-bit)) != 0 {
			c = codeOn
		}
		x0 := bit * cell
		fill(f, x0, y0, x0+cell, y0+cell, c)
	}
}
