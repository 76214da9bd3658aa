package adcp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// HeadingMatrix is the rotation about the vertical axis for heading h (radians).
func HeadingMatrix(h float64) *mat.Dense {
	s, c := math.Sincos(h)
	return mat.NewDense(3, 3, []float64{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	})
}

// TiltMatrix is the combined pitch/roll rotation for pitch p and roll r (radians).
func TiltMatrix(p, r float64) *mat.Dense {
	sp, cp := math.Sincos(p)
	sr, cr := math.Sincos(r)
	return mat.NewDense(3, 3, []float64{
		cp, -sp * sr, -cr * sp,
		0, cr, -sr,
		sp, sr * cp, cp * cr,
	})
}

// RotationMatrix returns H·P·T for one attitude sample, the rotation that
// takes a BEAM-frame vector to ENU. t is the calibration matrix.
func RotationMatrix(a AttitudeSample, t mat.Matrix) *mat.Dense {
	var r mat.Dense
	r.Product(HeadingMatrix(a.Heading), TiltMatrix(a.Pitch, a.Roll), t)
	return &r
}
