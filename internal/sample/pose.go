package sample

import (
	"fmt"
	"math"
	"strings"
)

// DistanceUnit is the unit of a pose's position.
type DistanceUnit uint8

const (
	Pixels DistanceUnit = iota
	Meters
)

func (u DistanceUnit) String() string {
	if u == Meters {
		return "meters"
	}
	return "pixels"
}

// ParseDistanceUnit accepts "pixels"/"px" and "meters"/"m".
func ParseDistanceUnit(s string) (DistanceUnit, error) {
	switch strings.ToLower(s) {
	case "pixels", "pixel", "px":
		return Pixels, nil
	case "meters", "meter", "m":
		return Meters, nil
	}
	return Pixels, fmt.Errorf("unknown distance unit %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (u DistanceUnit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *DistanceUnit) UnmarshalText(text []byte) error {
	v, err := ParseDistanceUnit(string(text))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Pose is the detected position and orientation of a tracked object.
type Pose struct {
	Info
	Found bool         `json:"found"`
	Unit  DistanceUnit `json:"unit"`
	// Position is x, y, z. Image based detectors leave z at 0.
	Position [3]float64 `json:"position"`
	// Orientation is a unit quaternion w, x, y, z.
	Orientation [4]float64 `json:"orientation"`
	// Heading is a unit vector in the image plane.
	Heading      [2]float64 `json:"heading"`
	HeadingValid bool       `json:"heading_valid"`
	// Velocity is in units per second.
	Velocity      [2]float64 `json:"velocity"`
	VelocityValid bool       `json:"velocity_valid"`
}

// IdentityOrientation is the quaternion for no rotation.
var IdentityOrientation = [4]float64{1, 0, 0, 0}

// NewPose returns a pose that has not been found.
func NewPose(info Info, unit DistanceUnit) Pose {
	return Pose{Info: info, Unit: unit, Orientation: IdentityOrientation}
}

// XY returns the in-plane position.
func (p Pose) XY() (float64, float64) {
	return p.Position[0], p.Position[1]
}

// SetHeading stores the direction (dx, dy) normalized. A zero vector
// invalidates the heading.
func (p *Pose) SetHeading(dx, dy float64) {
	norm := math.Hypot(dx, dy)
	if norm == 0 || math.IsNaN(norm) {
		p.Heading, p.HeadingValid = [2]float64{}, false
		return
	}
	p.Heading = [2]float64{dx / norm, dy / norm}
	p.HeadingValid = true
}

// HeadingAngle returns the heading in radians, counter-clockwise from +x.
func (p Pose) HeadingAngle() float64 {
	return math.Atan2(p.Heading[1], p.Heading[0])
}

// Speed returns the velocity magnitude.
func (p Pose) Speed() float64 {
	return math.Hypot(p.Velocity[0], p.Velocity[1])
}
