package adcp

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// DefaultHeadingOffsetDeg is the mounting offset subtracted from the recorded
// heading before it is used to build the heading matrix.
const DefaultHeadingOffsetDeg = 90.0

// CoordinateSystem is the frame velocities are expressed in.
type CoordinateSystem int

const (
	Beam CoordinateSystem = iota
	ENU
)

func (c CoordinateSystem) String() string {
	switch c {
	case Beam:
		return "BEAM"
	case ENU:
		return "ENU"
	default:
		return fmt.Sprintf("CoordinateSystem(%d)", int(c))
	}
}

// Suffix is the file name suffix used for data stored in this frame.
func (c CoordinateSystem) Suffix() string {
	if c == Beam {
		return "beam"
	}
	return "enu"
}

// Orientation is the instrument mounting orientation.
type Orientation int

const (
	Uplooking Orientation = iota
	Downlooking
)

func (o Orientation) String() string {
	if o == Downlooking {
		return "DOWNLOOKING"
	}
	return "UPLOOKING"
}

// Direction selects which way Convert rotates.
type Direction int

const (
	BeamToENU Direction = iota
	ENUToBeam
)

func (d Direction) String() string {
	switch d {
	case BeamToENU:
		return "beam->enu"
	case ENUToBeam:
		return "enu->beam"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Source returns the frame the input velocities are in.
func (d Direction) Source() CoordinateSystem {
	if d == ENUToBeam {
		return ENU
	}
	return Beam
}

// Target returns the frame the output velocities are in.
func (d Direction) Target() CoordinateSystem {
	if d == ENUToBeam {
		return Beam
	}
	return ENU
}

// DirectionFrom returns the conversion that moves data stored in cs into the
// other frame.
func DirectionFrom(cs CoordinateSystem) Direction {
	if cs == Beam {
		return BeamToENU
	}
	return ENUToBeam
}

// InstrumentConfig is the parsed calibration header of one deployment.
// It is built once per run and must not be mutated afterwards.
type InstrumentConfig struct {
	// BeamCells and VertCells are cell depths along the beam and along the
	// vertical. They always have the same length.
	BeamCells []float64
	VertCells []float64

	// CoordinateSystem is the frame the raw velocity files are stored in.
	CoordinateSystem CoordinateSystem
	Orientation      Orientation

	// RawCalibration is the instrument transformation matrix before the
	// orientation sign correction. Nil until ParseHeader reads it or the
	// caller supplies one.
	RawCalibration *mat.Dense
}

// Validate checks the invariants downstream components rely on.
func (c *InstrumentConfig) Validate() error {
	if len(c.BeamCells) != len(c.VertCells) {
		return fmt.Errorf("%w: %d beam cells but %d vertical cells",
			ErrMalformedHeader, len(c.BeamCells), len(c.VertCells))
	}
	if c.RawCalibration == nil {
		return fmt.Errorf("%w: no transformation matrix", ErrMalformedMatrix)
	}
	if r, cols := c.RawCalibration.Dims(); r != 3 || cols != 3 {
		return fmt.Errorf("%w: transformation matrix is %dx%d, want 3x3", ErrMalformedMatrix, r, cols)
	}
	return nil
}

// Cells returns the cell labels for data stored in cs.
func (c *InstrumentConfig) Cells(cs CoordinateSystem) []float64 {
	if cs == Beam {
		return c.BeamCells
	}
	return c.VertCells
}

// AttitudeSample is the instrument attitude at one ensemble, in radians with
// the heading offset already removed.
type AttitudeSample struct {
	Timestamp time.Time
	Heading   float64
	Pitch     float64
	Roll      float64
}

// AttitudeFromDegrees converts a recorded heading/pitch/roll triple in
// degrees into an AttitudeSample, subtracting headingOffsetDeg from the
// heading first.
func AttitudeFromDegrees(ts time.Time, headingDeg, pitchDeg, rollDeg, headingOffsetDeg float64) AttitudeSample {
	return AttitudeSample{
		Timestamp: ts,
		Heading:   radians(headingDeg - headingOffsetDeg),
		Pitch:     radians(pitchDeg),
		Roll:      radians(rollDeg),
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// VelocitySample is one ping: a velocity vector for every cell.
type VelocitySample struct {
	Timestamp time.Time
	Burst     int
	Ping      int

	// Cells labels each entry of Components by cell depth. The slice is
	// shared between samples of a series and must be treated as read-only.
	Cells []float64

	// Components[c] holds (v1, v2, v3) for cell c.
	Components [][3]float64
}

// Component returns component k (0, 1 or 2) for every cell.
func (s VelocitySample) Component(k int) []float64 {
	out := make([]float64, len(s.Components))
	for c, v := range s.Components {
		out[c] = v[k]
	}
	return out
}
