package adcp

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/beam2enu/internal/testutil"
)

var t0 = time.Date(2019, 7, 14, 12, 0, 0, 0, time.UTC)

func sampleConfig() *InstrumentConfig {
	return &InstrumentConfig{
		BeamCells:        append([]float64(nil), testutil.SampleBeamCells...),
		VertCells:        append([]float64(nil), testutil.SampleVertCells...),
		CoordinateSystem: Beam,
		Orientation:      Downlooking,
		RawCalibration:   mat.NewDense(3, 3, append([]float64(nil), testutil.SampleMatrix...)),
	}
}

// randomSeries returns n aligned attitude and velocity samples with cells
// cells each, one second apart.
func randomSeries(rng *rand.Rand, n int, cells []float64) ([]AttitudeSample, []VelocitySample) {
	att := make([]AttitudeSample, n)
	vel := make([]VelocitySample, n)
	for i := range n {
		ts := t0.Add(time.Duration(i) * time.Second)
		att[i] = AttitudeFromDegrees(ts, rng.Float64()*360, rng.Float64()*20-10, rng.Float64()*20-10, DefaultHeadingOffsetDeg)
		comps := make([][3]float64, len(cells))
		for c := range comps {
			comps[c] = [3]float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64() * 0.1}
		}
		vel[i] = VelocitySample{Timestamp: ts, Burst: i / 10, Ping: i % 10, Cells: cells, Components: comps}
	}
	return att, vel
}

func TestConvert_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := sampleConfig()
	rng := rand.New(rand.NewSource(1))
	att, beam := randomSeries(rng, 200, cfg.BeamCells)

	enu, err := Convert(context.Background(), att, beam, cfg, BeamToENU)
	if err != nil {
		t.Fatalf("beam->enu: %v", err)
	}
	if len(enu) != len(beam) {
		t.Fatalf("got %d enu samples, want %d", len(enu), len(beam))
	}
	if diff := cmp.Diff(cfg.VertCells, enu[0].Cells); diff != "" {
		t.Errorf("enu cells (-want +got):\n%s", diff)
	}

	back, err := Convert(context.Background(), att, enu, cfg, ENUToBeam)
	if err != nil {
		t.Fatalf("enu->beam: %v", err)
	}
	if len(back) != len(beam) {
		t.Fatalf("got %d beam samples, want %d", len(back), len(beam))
	}

	for i := range beam {
		if !back[i].Timestamp.Equal(beam[i].Timestamp) || back[i].Burst != beam[i].Burst || back[i].Ping != beam[i].Ping {
			t.Errorf("sample %d: got (%v, %d, %d), want (%v, %d, %d)", i,
				back[i].Timestamp, back[i].Burst, back[i].Ping,
				beam[i].Timestamp, beam[i].Burst, beam[i].Ping)
		}
		if diff := cmp.Diff(cfg.BeamCells, back[i].Cells); diff != "" {
			t.Errorf("sample %d cells (-want +got):\n%s", i, diff)
		}
		for c := range beam[i].Components {
			testutil.AssertVecNear(t, back[i].Components[c][:], beam[i].Components[c][:], 1e-5)
		}
	}
}

func TestConvert_HeadingQuarterTurn(t *testing.T) {
	t.Parallel()

	cfg := &InstrumentConfig{
		BeamCells:        []float64{1},
		VertCells:        []float64{1},
		CoordinateSystem: Beam,
		Orientation:      Uplooking,
		RawCalibration:   eye(),
	}
	att := []AttitudeSample{AttitudeFromDegrees(t0, 180, 0, 0, DefaultHeadingOffsetDeg)}
	vel := []VelocitySample{{Timestamp: t0, Cells: cfg.BeamCells, Components: [][3]float64{{1, 0, 0}}}}

	out, err := Convert(context.Background(), att, vel, cfg, BeamToENU)
	testutil.AssertNoError(t, err)
	testutil.AssertVecNear(t, out[0].Components[0][:], []float64{0, -1, 0}, 1e-12)
}

func TestConvert_CellsIndependent(t *testing.T) {
	t.Parallel()

	cfg := sampleConfig()
	rng := rand.New(rand.NewSource(7))
	att, vel := randomSeries(rng, 50, cfg.BeamCells)

	perm := []int{2, 0, 3, 1}
	permCfg := *cfg
	permCfg.BeamCells = make([]float64, len(perm))
	permCfg.VertCells = make([]float64, len(perm))
	for i, p := range perm {
		permCfg.BeamCells[i] = cfg.BeamCells[p]
		permCfg.VertCells[i] = cfg.VertCells[p]
	}
	permVel := make([]VelocitySample, len(vel))
	for i, s := range vel {
		s.Cells = permCfg.BeamCells
		comps := make([][3]float64, len(perm))
		for j, p := range perm {
			comps[j] = vel[i].Components[p]
		}
		s.Components = comps
		permVel[i] = s
	}

	out, err := Convert(context.Background(), att, vel, cfg, BeamToENU)
	testutil.AssertNoError(t, err)
	permOut, err := Convert(context.Background(), att, permVel, &permCfg, BeamToENU)
	testutil.AssertNoError(t, err)

	for i := range out {
		for j, p := range perm {
			if out[i].Components[p] != permOut[i].Components[j] {
				t.Errorf("sample %d cell %d: got %v, want %v", i, j, permOut[i].Components[j], out[i].Components[p])
			}
		}
		if diff := cmp.Diff(permCfg.VertCells, permOut[i].Cells); diff != "" {
			t.Errorf("sample %d cells (-want +got):\n%s", i, diff)
		}
	}
}

func TestConvert_DeterministicAcrossWorkers(t *testing.T) {
	t.Parallel()

	cfg := sampleConfig()
	rng := rand.New(rand.NewSource(3))
	att, vel := randomSeries(rng, 333, cfg.BeamCells)

	serial, err := (&Engine{Workers: 1}).Convert(context.Background(), att, vel, cfg, BeamToENU)
	testutil.AssertNoError(t, err)
	parallel, err := (&Engine{Workers: 8}).Convert(context.Background(), att, vel, cfg, BeamToENU)
	testutil.AssertNoError(t, err)

	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Errorf("worker count changed output (-serial +parallel):\n%s", diff)
	}
}

func TestConvert_ENUToBeamMatchesInverse(t *testing.T) {
	t.Parallel()

	cfg := sampleConfig()
	cfg.CoordinateSystem = ENU
	a := AttitudeSample{Timestamp: t0, Heading: 0.4, Pitch: 0.05, Roll: -0.02}
	v := [3]float64{0.2, -0.1, 0.01}

	var inv mat.Dense
	testutil.AssertNoError(t, inv.Inverse(RotationMatrix(a, CalibrationMatrix(cfg.RawCalibration, cfg.Orientation))))
	var want mat.VecDense
	want.MulVec(&inv, mat.NewVecDense(3, v[:]))

	comps := make([][3]float64, len(cfg.VertCells))
	for i := range comps {
		comps[i] = v
	}
	out, err := Convert(context.Background(), []AttitudeSample{a},
		[]VelocitySample{{Timestamp: t0, Cells: cfg.VertCells, Components: comps}}, cfg, ENUToBeam)
	testutil.AssertNoError(t, err)

	opt := cmpopts.EquateApprox(1e-9, 1e-12)
	for c := range comps {
		if diff := cmp.Diff(want.RawVector().Data, out[0].Components[c][:], opt); diff != "" {
			t.Errorf("cell %d (-want +got):\n%s", c, diff)
		}
	}
	if diff := cmp.Diff(cfg.BeamCells, out[0].Cells); diff != "" {
		t.Errorf("cells (-want +got):\n%s", diff)
	}
}

func TestConvert_SingularRotation(t *testing.T) {
	t.Parallel()

	cfg := sampleConfig()
	cfg.RawCalibration = mat.NewDense(3, 3, []float64{1, 0, 0, 0, 0, 0, 0, 0, 1})
	rng := rand.New(rand.NewSource(11))
	att, vel := randomSeries(rng, 20, cfg.VertCells)

	out, err := Convert(context.Background(), att, vel, cfg, ENUToBeam)
	if !errors.Is(err, ErrSingularRotation) {
		t.Fatalf("err = %v, want ErrSingularRotation", err)
	}
	if out != nil {
		t.Errorf("got %d samples, want no partial output", len(out))
	}

	var serr *SingularRotationError
	if !errors.As(err, &serr) {
		t.Fatalf("want *SingularRotationError, got %T", err)
	}
	if serr.Index != 0 || !serr.Timestamp.Equal(att[0].Timestamp) {
		t.Errorf("error at (%d, %v), want (0, %v)", serr.Index, serr.Timestamp, att[0].Timestamp)
	}

	// The forward direction needs no inverse.
	_, err = Convert(context.Background(), att, vel, cfg, BeamToENU)
	testutil.AssertNoError(t, err)
}

func TestConvert_Alignment(t *testing.T) {
	t.Parallel()

	cfg := sampleConfig()
	rng := rand.New(rand.NewSource(5))

	tests := []struct {
		name   string
		mutate func(att []AttitudeSample, vel []VelocitySample) ([]AttitudeSample, []VelocitySample)
	}{
		{
			name: "length mismatch",
			mutate: func(att []AttitudeSample, vel []VelocitySample) ([]AttitudeSample, []VelocitySample) {
				return att[:len(att)-1], vel
			},
		},
		{
			name: "timestamp mismatch",
			mutate: func(att []AttitudeSample, vel []VelocitySample) ([]AttitudeSample, []VelocitySample) {
				vel[3].Timestamp = vel[3].Timestamp.Add(time.Millisecond)
				return att, vel
			},
		},
		{
			name: "timestamps go backwards",
			mutate: func(att []AttitudeSample, vel []VelocitySample) ([]AttitudeSample, []VelocitySample) {
				att[4].Timestamp, vel[4].Timestamp = t0.Add(-time.Hour), t0.Add(-time.Hour)
				return att, vel
			},
		},
		{
			name: "cell count mismatch",
			mutate: func(att []AttitudeSample, vel []VelocitySample) ([]AttitudeSample, []VelocitySample) {
				vel[2].Components = vel[2].Components[:2]
				return att, vel
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att, vel := randomSeries(rng, 10, cfg.BeamCells)
			att, vel = tt.mutate(att, vel)
			out, err := Convert(context.Background(), att, vel, cfg, BeamToENU)
			if !errors.Is(err, ErrAlignment) {
				t.Errorf("err = %v, want ErrAlignment", err)
			}
			if out != nil {
				t.Errorf("got %d samples, want nil", len(out))
			}
		})
	}
}

func TestConvert_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := sampleConfig()
	cfg.VertCells = cfg.VertCells[:3]
	_, err := Convert(context.Background(), nil, nil, cfg, BeamToENU)
	if !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("cell mismatch: err = %v, want ErrMalformedHeader", err)
	}

	cfg = sampleConfig()
	cfg.RawCalibration = nil
	_, err = Convert(context.Background(), nil, nil, cfg, BeamToENU)
	if !errors.Is(err, ErrMalformedMatrix) {
		t.Errorf("nil matrix: err = %v, want ErrMalformedMatrix", err)
	}
}

func TestConvert_Empty(t *testing.T) {
	t.Parallel()

	out, err := Convert(context.Background(), nil, nil, sampleConfig(), BeamToENU)
	testutil.AssertNoError(t, err)
	if len(out) != 0 {
		t.Errorf("got %d samples, want none", len(out))
	}
}

func TestConvert_Cancelled(t *testing.T) {
	t.Parallel()

	cfg := sampleConfig()
	att, vel := randomSeries(rand.New(rand.NewSource(9)), 10, cfg.BeamCells)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Convert(ctx, att, vel, cfg, BeamToENU)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestChunks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, parts int
		want     []span
	}{
		{0, 4, nil},
		{5, 1, []span{{0, 5}}},
		{10, 3, []span{{0, 4}, {4, 8}, {8, 10}}},
		{3, 8, []span{{0, 1}, {1, 2}, {2, 3}}},
	}
	for _, tt := range tests {
		got := chunks(tt.n, tt.parts)
		if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(span{})); diff != "" {
			t.Errorf("chunks(%d, %d) (-want +got):\n%s", tt.n, tt.parts, diff)
		}
	}
}

func TestDirection(t *testing.T) {
	t.Parallel()

	if got := DirectionFrom(Beam); got != BeamToENU {
		t.Errorf("DirectionFrom(Beam) = %v", got)
	}
	if got := DirectionFrom(ENU); got != ENUToBeam {
		t.Errorf("DirectionFrom(ENU) = %v", got)
	}
	if BeamToENU.Source() != Beam || BeamToENU.Target() != ENU {
		t.Errorf("BeamToENU = %v -> %v", BeamToENU.Source(), BeamToENU.Target())
	}
	if ENUToBeam.Source() != ENU || ENUToBeam.Target() != Beam {
		t.Errorf("ENUToBeam = %v -> %v", ENUToBeam.Source(), ENUToBeam.Target())
	}
	if ENU.Suffix() != "enu" || Beam.Suffix() != "beam" {
		t.Errorf("suffixes = %q, %q", ENU.Suffix(), Beam.Suffix())
	}
}
