package detector

import (
	"math"

	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// HSVConfig selects pixels inside a hue, saturation and value box. Hue is
// in degrees [0, 360); a range with HMin > HMax wraps through red.
// Saturation and value are in [0, 255].
type HSVConfig struct {
	HMin int `json:"h-min"`
	HMax int `json:"h-max"`
	SMin int `json:"s-min"`
	SMax int `json:"s-max"`
	VMin int `json:"v-min"`
	VMax int `json:"v-max"`
	AreaBounds
}

// DefaultHSVConfig accepts any saturated, bright color.
func DefaultHSVConfig() HSVConfig {
	return HSVConfig{HMin: 0, HMax: 359, SMin: 100, SMax: 255, VMin: 100, VMax: 255}
}

// Validate checks each channel range and the area bounds.
func (c HSVConfig) Validate() error {
	if c.HMin < 0 || c.HMax < 0 || c.HMin >= 360 || c.HMax >= 360 {
		return invalid("hue bounds must be in [0, 360)")
	}
	if c.SMin < 0 || c.SMax > 255 || c.SMin > c.SMax {
		return invalid("saturation window [%d, %d] must satisfy 0 <= min <= max <= 255", c.SMin, c.SMax)
	}
	if c.VMin < 0 || c.VMax > 255 || c.VMin > c.VMax {
		return invalid("value window [%d, %d] must satisfy 0 <= min <= max <= 255", c.VMin, c.VMax)
	}
	return c.AreaBounds.Validate()
}

func (c HSVConfig) contains(h, s, v float64) bool {
	if s < float64(c.SMin) || s > float64(c.SMax) || v < float64(c.VMin) || v > float64(c.VMax) {
		return false
	}
	lo, hi := float64(c.HMin), float64(c.HMax)
	if lo <= hi {
		return h >= lo && h <= hi
	}
	return h >= lo || h <= hi
}

// HSV detects the centroid of pixels inside a color box. It needs color
// frames.
type HSV struct {
	cfg HSVConfig
	b   blob
}

// NewHSV validates cfg and creates the detector.
func NewHSV(cfg HSVConfig) (*HSV, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HSV{cfg: cfg}, nil
}

// Name implements Detector.
func (d *HSV) Name() string { return "hsv" }

// Detect implements Detector.
func (d *HSV) Detect(f sample.Frame) (sample.Pose, error) {
	if err := f.Validate(); err != nil {
		return sample.Pose{}, err
	}
	d.b.scan(f, func(x, y int) bool {
		c := f.At(x, y)
		return d.cfg.contains(toHSV(c.R, c.G, c.B))
	})
	return d.b.pose(f.Info, d.cfg.AreaBounds), nil
}

// toHSV returns hue in degrees and saturation and value in [0, 255].
func toHSV(r, g, b uint8) (h, s, v float64) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	hi := math.Max(rf, math.Max(gf, bf))
	lo := math.Min(rf, math.Min(gf, bf))
	delta := hi - lo

	v = hi
	if hi == 0 {
		return 0, 0, v
	}
	s = 255 * delta / hi
	if delta == 0 {
		return 0, s, v
	}

	switch hi {
	case rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case gf:
		h = 60 * ((bf-rf)/delta + 2)
	default:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}
