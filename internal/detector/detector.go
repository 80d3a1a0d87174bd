package detector

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/shmflow/internal/sample"
)

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid detector configuration")

	// ErrUnknownType is returned for an unsupported detector type.
	ErrUnknownType = errors.New("unknown detector type")

	// ErrNoMarkerBackend is returned when marker detection is requested
	// but no backend is available.
	ErrNoMarkerBackend = errors.New("no marker detection backend available")
)

// Detector finds one object in a frame.
type Detector interface {
	Name() string
	// Detect returns the object's pose. A frame without the object gives a
	// pose with Found unset, not an error.
	Detect(f sample.Frame) (sample.Pose, error)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// AreaBounds limits the pixel count of an accepted blob. Max 0 means no
// upper bound.
type AreaBounds struct {
	Min int `json:"min-area"`
	Max int `json:"max-area"`
}

// Validate checks the bounds.
func (a AreaBounds) Validate() error {
	if a.Min < 0 || a.Max < 0 {
		return invalid("area bounds must not be negative")
	}
	if a.Max != 0 && a.Max < a.Min {
		return invalid("max area %d is below min area %d", a.Max, a.Min)
	}
	return nil
}

func (a AreaBounds) accepts(area int) bool {
	return area > 0 && area >= a.Min && (a.Max == 0 || area <= a.Max)
}

// blob accumulates the coordinates of matching pixels.
type blob struct {
	xs, ys []float64
}

func (b *blob) add(x, y int) {
	b.xs = append(b.xs, float64(x))
	b.ys = append(b.ys, float64(y))
}

func (b *blob) area() int { return len(b.xs) }

func (b *blob) reset() {
	b.xs, b.ys = b.xs[:0], b.ys[:0]
}

// pose turns the blob into a pixel-unit pose at its centroid.
func (b *blob) pose(info sample.Info, bounds AreaBounds) sample.Pose {
	p := sample.NewPose(info, sample.Pixels)
	if !bounds.accepts(b.area()) {
		return p
	}
	p.Found = true
	p.Position[0] = stat.Mean(b.xs, nil)
	p.Position[1] = stat.Mean(b.ys, nil)
	return p
}

// scan adds every pixel of f for which match holds.
func (b *blob) scan(f sample.Frame, match func(x, y int) bool) {
	b.reset()
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if match(x, y) {
				b.add(x, y)
			}
		}
	}
}
