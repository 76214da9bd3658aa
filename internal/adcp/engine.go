package adcp

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// DefaultSingularTolerance is the |det| at or below which a rotation matrix
// is treated as singular.
const DefaultSingularTolerance = 1e-9

// Engine applies per-timestamp rotations to velocity samples. The zero value
// is usable: Workers defaults to GOMAXPROCS and SingularTolerance to
// DefaultSingularTolerance.
type Engine struct {
	Workers           int
	SingularTolerance float64
}

// NewEngine returns an Engine with default settings.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) workers(n int) int {
	w := e.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

func (e *Engine) tolerance() float64 {
	if e.SingularTolerance > 0 {
		return e.SingularTolerance
	}
	return DefaultSingularTolerance
}

// Convert rotates velocity into the target frame of dir using the default
// Engine.
func Convert(ctx context.Context, attitude []AttitudeSample, velocity []VelocitySample, cfg *InstrumentConfig, dir Direction) ([]VelocitySample, error) {
	return NewEngine().Convert(ctx, attitude, velocity, cfg, dir)
}

// Convert rotates every cell of every velocity sample into the target frame
// of dir. attitude[i] gives the orientation for velocity[i]. On error no
// samples are returned.
func (e *Engine) Convert(ctx context.Context, attitude []AttitudeSample, velocity []VelocitySample, cfg *InstrumentConfig, dir Direction) ([]VelocitySample, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	srcCells := cfg.Cells(dir.Source())
	if err := checkAlignment(attitude, velocity, len(srcCells)); err != nil {
		return nil, err
	}
	if len(velocity) == 0 {
		return []VelocitySample{}, nil
	}

	rotations, err := e.rotations(ctx, attitude, CalibrationMatrix(cfg.RawCalibration, cfg.Orientation), dir)
	if err != nil {
		return nil, err
	}

	dstCells := cfg.Cells(dir.Target())
	out := make([]VelocitySample, len(velocity))
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range chunks(len(velocity), e.workers(len(velocity))) {
		g.Go(func() error {
			for i := s.lo; i < s.hi; i++ {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				out[i] = rotateSample(&rotations[i], velocity[i], dstCells)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// rotations builds one flattened rotation per attitude sample, inverted for
// ENUToBeam. When several samples are singular the lowest index is reported.
func (e *Engine) rotations(ctx context.Context, attitude []AttitudeSample, t *mat.Dense, dir Direction) ([][9]float64, error) {
	out := make([][9]float64, len(attitude))
	spans := chunks(len(attitude), e.workers(len(attitude)))
	spanErrs := make([]error, len(spans))
	tol := e.tolerance()

	g, gctx := errgroup.WithContext(ctx)
	for k, s := range spans {
		g.Go(func() error {
			for i := s.lo; i < s.hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				r := RotationMatrix(attitude[i], t)
				if dir == ENUToBeam {
					inv, err := invert(r, tol)
					if err != nil {
						spanErrs[k] = &SingularRotationError{Index: i, Timestamp: attitude[i].Timestamp, Det: mat.Det(r)}
						return nil
					}
					r = inv
				}
				copy(out[i][:], r.RawMatrix().Data)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range spanErrs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func invert(r *mat.Dense, tol float64) (*mat.Dense, error) {
	if det := mat.Det(r); math.Abs(det) <= tol || math.IsNaN(det) {
		return nil, ErrSingularRotation
	}
	var inv mat.Dense
	if err := inv.Inverse(r); err != nil {
		return nil, err
	}
	return &inv, nil
}

func rotateSample(r *[9]float64, src VelocitySample, cells []float64) VelocitySample {
	dst := VelocitySample{
		Timestamp:  src.Timestamp,
		Burst:      src.Burst,
		Ping:       src.Ping,
		Cells:      cells,
		Components: make([][3]float64, len(src.Components)),
	}
	for c, v := range src.Components {
		dst.Components[c] = [3]float64{
			r[0]*v[0] + r[1]*v[1] + r[2]*v[2],
			r[3]*v[0] + r[4]*v[1] + r[5]*v[2],
			r[6]*v[0] + r[7]*v[1] + r[8]*v[2],
		}
	}
	return dst
}

func checkAlignment(attitude []AttitudeSample, velocity []VelocitySample, cells int) error {
	if len(attitude) != len(velocity) {
		return fmt.Errorf("%w: %d attitude samples, %d velocity samples", ErrAlignment, len(attitude), len(velocity))
	}
	for i := range attitude {
		if !attitude[i].Timestamp.Equal(velocity[i].Timestamp) {
			return fmt.Errorf("%w: sample %d: attitude at %s, velocity at %s",
				ErrAlignment, i, attitude[i].Timestamp, velocity[i].Timestamp)
		}
		if i > 0 && attitude[i].Timestamp.Before(attitude[i-1].Timestamp) {
			return fmt.Errorf("%w: sample %d: timestamp %s goes backwards", ErrAlignment, i, attitude[i].Timestamp)
		}
		if n := len(velocity[i].Components); n != cells {
			return fmt.Errorf("%w: sample %d has %d cells, want %d", ErrAlignment, i, n, cells)
		}
	}
	return nil
}

type span struct{ lo, hi int }

// chunks splits [0,n) into at most parts contiguous spans.
func chunks(n, parts int) []span {
	if n == 0 || parts < 1 {
		return nil
	}
	size := (n + parts - 1) / parts
	out := make([]span, 0, parts)
	for lo := 0; lo < n; lo += size {
		out = append(out, span{lo, min(lo+size, n)})
	}
	return out
}
