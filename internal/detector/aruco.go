package detector

import (
	"fmt"
	"sort"

	"github.com/GriffinCanCode/shmflow/internal/sample"
)

// dictionaries maps marker dictionary names to the number of markers
// they hold. It is never modified.
var dictionaries = map[string]int{
	"4X4_50": 50, "4X4_100": 100, "4X4_250": 250, "4X4_1000": 1000,
	"5X5_50": 50, "5X5_100": 100, "5X5_250": 250, "5X5_1000": 1000,
	"6X6_50": 50, "6X6_100": 100, "6X6_250": 250, "6X6_1000": 1000,
	"7X7_50": 50, "7X7_100": 100, "7X7_250": 250, "7X7_1000": 1000,
}

// DictionarySize returns the number of markers in the named dictionary.
func DictionarySize(name string) (int, bool) {
	n, ok := dictionaries[name]
	return n, ok
}

// Dictionaries lists the known dictionary names.
func Dictionaries() []string {
	names := make([]string, 0, len(dictionaries))
	for name := range dictionaries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ArucoConfig describes a marker grid board and the camera observing it.
type ArucoConfig struct {
	Dictionary string `json:"dictionary"`
	// BoardSize is the number of markers along X and Y.
	BoardSize IntList `json:"board-size"`
	// Length is the side of one marker in meters.
	Length float64 `json:"length"`
	// Separation is the gap between markers in meters.
	Separation float64 `json:"separation"`
	// CameraMatrix is the 3x3 intrinsic matrix in row-major order.
	CameraMatrix FloatList `json:"camera-matrix"`
	// DistortionCoeffs holds 5 to 8 lens distortion coefficients.
	DistortionCoeffs FloatList `json:"distortion-coeffs"`

	// ThreshParams is the adaptive threshold window [min, max, step].
	ThreshParams IntList `json:"thresh-params"`
	// ContourParams is the marker perimeter range [min, max] relative
	// to the frame's major dimension.
	ContourParams   FloatList `json:"contour-params"`
	MinCornerDist   float64   `json:"min-corner-dist"`
	MinMarkerDist   float64   `json:"min-marker-dist"`
	MinBorderDist   int       `json:"min-border-dist"`
	PixelsPerCell   int       `json:"pixels-per-cell"`
	BorderErrorRate float64   `json:"border-error-rate"`
	RefineDetection bool      `json:"refine-detection"`
}

// DefaultArucoConfig returns the detection defaults. Board geometry and
// camera calibration have no defaults.
func DefaultArucoConfig() ArucoConfig {
	return ArucoConfig{
		Dictionary:      "4X4_50",
		ThreshParams:    IntList{3, 23, 10},
		ContourParams:   FloatList{0.03, 4.0},
		MinCornerDist:   0.05,
		MinMarkerDist:   0.05,
		MinBorderDist:   3,
		PixelsPerCell:   4,
		BorderErrorRate: 0.35,
	}
}

// Validate checks the whole configuration. It runs before any channel is
// attached so a bad board never touches shared memory.
func (c ArucoConfig) Validate() error {
	size, ok := dictionaries[c.Dictionary]
	if !ok {
		return invalid("unknown marker dictionary %q", c.Dictionary)
	}

	if len(c.BoardSize) != 2 {
		return invalid("board size needs 2 values, got %d", len(c.BoardSize))
	}
	if c.BoardSize[0] < 1 || c.BoardSize[1] < 1 {
		return invalid("board size values must be at least 1")
	}
	if c.BoardSize[0]*c.BoardSize[1] > size {
		return invalid("board size %dx%d is too large for dictionary %s", c.BoardSize[0], c.BoardSize[1], c.Dictionary)
	}

	if c.Length <= 0 {
		return invalid("marker length must be positive")
	}
	if c.Separation <= 0 {
		return invalid("marker separation must be positive")
	}

	if len(c.CameraMatrix) != 9 {
		return invalid("camera matrix needs 9 values, got %d", len(c.CameraMatrix))
	}
	if n := len(c.DistortionCoeffs); n < 5 || n > 8 {
		return invalid("distortion coefficients consist of 5 to 8 values, got %d", n)
	}

	if len(c.ThreshParams) != 3 {
		return invalid("threshold parameters need 3 values, got %d", len(c.ThreshParams))
	}
	if lo, hi, step := c.ThreshParams[0], c.ThreshParams[1], c.ThreshParams[2]; lo < 3 || hi <= lo || step < 1 {
		return invalid("threshold parameters must be: min >= 3, max > min, step >= 1")
	}

	if len(c.ContourParams) != 2 {
		return invalid("contour parameters need 2 values, got %d", len(c.ContourParams))
	}
	if c.ContourParams[0] < 0 || c.ContourParams[1] < 0 {
		return invalid("contour parameters must not be negative")
	}

	if c.MinCornerDist < 0 || c.MinMarkerDist < 0 || c.MinBorderDist < 0 || c.PixelsPerCell < 0 || c.BorderErrorRate < 0 {
		return invalid("marker distance and cell parameters must not be negative")
	}
	return nil
}

// MarkerBackend locates a marker board in a frame.
type MarkerBackend interface {
	// EstimateBoard returns the board pose in camera coordinates as a
	// Rodrigues rotation vector and a translation in meters. found is
	// false when too few markers were seen.
	EstimateBoard(f sample.Frame, board ArucoConfig) (rvec, tvec [3]float64, found bool, err error)
}

// Aruco estimates a 3D pose from a marker board.
type Aruco struct {
	cfg     ArucoConfig
	backend MarkerBackend
}

// NewAruco validates cfg, then checks that a backend is available.
func NewAruco(cfg ArucoConfig, backend MarkerBackend) (*Aruco, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, fmt.Errorf("aruco: %w", ErrNoMarkerBackend)
	}
	return &Aruco{cfg: cfg, backend: backend}, nil
}

// Name implements Detector.
func (a *Aruco) Name() string { return "aruco" }

// Detect implements Detector. The heading is the board's X axis projected
// onto the image plane.
func (a *Aruco) Detect(f sample.Frame) (sample.Pose, error) {
	p := sample.NewPose(f.Info, sample.Meters)

	rvec, tvec, found, err := a.backend.EstimateBoard(f, a.cfg)
	if err != nil {
		return p, fmt.Errorf("aruco: %w", err)
	}
	if !found {
		return p, nil
	}

	p.Found = true
	p.Position = tvec
	p.Orientation = Quaternion(rvec)
	r := Rotation(rvec)
	p.SetHeading(r.At(0, 0), r.At(1, 0))
	return p, nil
}
