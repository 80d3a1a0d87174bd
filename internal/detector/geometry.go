package detector

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Rotation converts a Rodrigues vector (axis times angle in radians) into
// a 3x3 rotation matrix.
func Rotation(rvec [3]float64) *mat.Dense {
	r := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	theta := floats.Norm(rvec[:], 2)
	if theta < 1e-12 {
		return r
	}

	k := make([]float64, 3)
	floats.ScaleTo(k, 1/theta, rvec[:])
	skew := mat.NewDense(3, 3, []float64{
		0, -k[2], k[1],
		k[2], 0, -k[0],
		-k[1], k[0], 0,
	})

	var sq mat.Dense
	sq.Mul(skew, skew)

	var term mat.Dense
	term.Scale(math.Sin(theta), skew)
	r.Add(r, &term)
	term.Scale(1-math.Cos(theta), &sq)
	r.Add(r, &term)
	return r
}

// Quaternion converts a Rodrigues vector into a unit quaternion w, x, y, z.
func Quaternion(rvec [3]float64) [4]float64 {
	theta := floats.Norm(rvec[:], 2)
	if theta < 1e-12 {
		return [4]float64{1, 0, 0, 0}
	}
	s := math.Sin(theta/2) / theta
	return [4]float64{math.Cos(theta / 2), rvec[0] * s, rvec[1] * s, rvec[2] * s}
}
