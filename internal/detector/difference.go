package detector

import (
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// DifferenceConfig selects pixels whose luma changed by at least
// Threshold since the previous frame.
type DifferenceConfig struct {
	Threshold int `json:"diff-threshold"`
	AreaBounds
}

// DefaultDifferenceConfig returns a moderate motion threshold.
func DefaultDifferenceConfig() DifferenceConfig {
	return DifferenceConfig{Threshold: 25}
}

// Validate checks the threshold and the area bounds.
func (c DifferenceConfig) Validate() error {
	if c.Threshold < 1 || c.Threshold > 255 {
		return invalid("difference threshold %d must be in [1, 255]", c.Threshold)
	}
	return c.AreaBounds.Validate()
}

// Difference is a motion detector. The first frame, and any frame whose
// size differs from the previous one, only primes it.
type Difference struct {
	cfg  DifferenceConfig
	prev sample.Frame
	cur  sample.Frame
	b    blob
}

// NewDifference validates cfg and creates the detector.
func NewDifference(cfg DifferenceConfig) (*Difference, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Difference{cfg: cfg}, nil
}

// Name implements Detector.
func (d *Difference) Name() string { return "diff" }

// Detect implements Detector.
func (d *Difference) Detect(f sample.Frame) (sample.Pose, error) {
	if err := f.Validate(); err != nil {
		return sample.Pose{}, err
	}

	d.luma(f)
	defer func() { d.prev, d.cur = d.cur, d.prev }()

	if d.prev.Width != f.Width || d.prev.Height != f.Height {
		return sample.NewPose(f.Info, sample.Pixels), nil
	}

	thresh := d.cfg.Threshold
	d.b.scan(f, func(x, y int) bool {
		i := y*f.Width + x
		diff := int(d.cur.Pix[i]) - int(d.prev.Pix[i])
		return diff >= thresh || -diff >= thresh
	})
	return d.b.pose(f.Info, d.cfg.AreaBounds), nil
}

// luma stores f's gray levels in d.cur, reusing its buffer.
func (d *Difference) luma(f sample.Frame) {
	n := f.Width * f.Height
	if cap(d.cur.Pix) < n {
		d.cur.Pix = make([]byte, n)
	}
	d.cur.Width, d.cur.Height, d.cur.Format = f.Width, f.Height, sample.Mono8
	d.cur.Pix = d.cur.Pix[:n]
	if f.Format == sample.Mono8 {
		copy(d.cur.Pix, f.Pix)
		return
	}
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			d.cur.Pix[y*f.Width+x] = f.Gray(x, y)
		}
	}
}
