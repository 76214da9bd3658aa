// Package testutil provides shared test utilities and fixtures.
//
// This package centralises instrument fixtures and numeric assertions used by
// the conversion, file format and pipeline tests.
package testutil

import (
	"math"
	"testing"
)

// SampleHeader is an abridged Aquadopp profiler header for a downlooking
// instrument storing BEAM velocities in four cells.
const SampleHeader = `---------------------------------------------------------------------
Hardware configuration
---------------------------------------------------------------------
Serial number                         AQD 5531
Head frequency                        1000 kHz

---------------------------------------------------------------------
User setup
---------------------------------------------------------------------
Profile interval                      600 sec
Number of cells                       4
Cell size                             30 cm
Orientation                           DOWNLOOKING
Coordinate system                     BEAM

---------------------------------------------------------------------
Head configuration
---------------------------------------------------------------------
Pressure sensor                       YES
Number of beams                       3
Transformation matrix                 1.5774 -0.7891 -0.7891
                                      0.0000 -1.3662  1.3662
                                      0.3677  0.3677  0.3677

---------------------------------------------------------------------
Cell positions (m)
---------------------------------------------------------------------
       Beam    Vertical
  1    0.43    0.40
  2    0.74    0.70
  3    1.06    1.00
  4    1.38    1.30

`

// SampleMatrix is the transformation matrix in SampleHeader, row-major.
var SampleMatrix = []float64{
	1.5774, -0.7891, -0.7891,
	0.0000, -1.3662, 1.3662,
	0.3677, 0.3677, 0.3677,
}

// SampleBeamCells and SampleVertCells are the cell positions in SampleHeader.
var (
	SampleBeamCells = []float64{0.43, 0.74, 1.06, 1.38}
	SampleVertCells = []float64{0.40, 0.70, 1.00, 1.30}
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Near reports whether got is within rel of want, relative to the larger
// magnitude. Values smaller than rel in magnitude are compared absolutely.
func Near(got, want, rel float64) bool {
	scale := math.Max(math.Abs(got), math.Abs(want))
	if scale < 1 {
		scale = 1
	}
	return math.Abs(got-want) <= rel*scale
}

// AssertVecNear fails the test if any element of got is not Near want.
func AssertVecNear(t testing.TB, got, want []float64, rel float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
		return
	}
	for i := range got {
		if !Near(got[i], want[i], rel) {
			t.Errorf("element %d = %.9g, want %.9g", i, got[i], want[i])
		}
	}
}
