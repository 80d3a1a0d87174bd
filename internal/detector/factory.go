package detector

import "fmt"

// Config holds the settings of every detector type; only the selected
// type's section is used.
type Config struct {
	Threshold  ThresholdConfig
	Difference DifferenceConfig
	HSV        HSVConfig
	Aruco      ArucoConfig
}

// DefaultConfig returns defaults for every type.
func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThresholdConfig(),
		Difference: DefaultDifferenceConfig(),
		HSV:        DefaultHSVConfig(),
		Aruco:      DefaultArucoConfig(),
	}
}

// Types lists the detector types.
func Types() []string {
	return []string{"aruco", "diff", "hsv", "thresh"}
}

// Section returns a pointer to the settings of kind, for loading a
// configuration file table into it.
func (c *Config) Section(kind string) (any, error) {
	switch kind {
	case "thresh":
		return &c.Threshold, nil
	case "diff":
		return &c.Difference, nil
	case "hsv":
		return &c.HSV, nil
	case "aruco":
		return &c.Aruco, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
}

// New validates the selected section and creates the detector. backend
// is only used by aruco and may be nil otherwise.
func New(kind string, cfg Config, backend MarkerBackend) (Detector, error) {
	switch kind {
	case "thresh":
		return NewThreshold(cfg.Threshold)
	case "diff":
		return NewDifference(cfg.Difference)
	case "hsv":
		return NewHSV(cfg.HSV)
	case "aruco":
		return NewAruco(cfg.Aruco, backend)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
}
