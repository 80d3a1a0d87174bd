package detector

import (
	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// ThresholdConfig selects pixels whose luma lies in [Min, Max].
type ThresholdConfig struct {
	Min int `json:"min-value"`
	Max int `json:"max-value"`
	AreaBounds
}

// DefaultThresholdConfig accepts bright pixels of any blob size.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{Min: 200, Max: 255}
}

// Validate checks the amplitude window and the area bounds.
func (c ThresholdConfig) Validate() error {
	if c.Min < 0 || c.Max > 255 || c.Min > c.Max {
		return invalid("threshold window [%d, %d] must satisfy 0 <= min <= max <= 255", c.Min, c.Max)
	}
	return c.AreaBounds.Validate()
}

// Threshold detects the centroid of all pixels inside an amplitude window.
type Threshold struct {
	cfg ThresholdConfig
	b   blob
}

// NewThreshold validates cfg and creates the detector.
func NewThreshold(cfg ThresholdConfig) (*Threshold, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Threshold{cfg: cfg}, nil
}

// Name implements Detector.
func (t *Threshold) Name() string { return "thresh" }

// Detect implements Detector.
func (t *Threshold) Detect(f sample.Frame) (sample.Pose, error) {
	if err := f.Validate(); err != nil {
		return sample.Pose{}, err
	}
	lo, hi := uint8(t.cfg.Min), uint8(t.cfg.Max)
	t.b.scan(f, func(x, y int) bool {
		g := f.Gray(x, y)
		return g >= lo && g <= hi
	})
	return t.b.pose(f.Info, t.cfg.AreaBounds), nil
}
