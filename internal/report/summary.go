// Package report summarises and plots converted velocity series.
package report

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/beam2enu/internal/adcp"
)

// CellSummary holds statistics for one cell over a whole series.
type CellSummary struct {
	Index int
	Cell  float64
	// MeanSpeed and StdSpeed describe the horizontal speed hypot(v1, v2).
	MeanSpeed float64
	StdSpeed  float64
	// Mean is the per-component mean.
	Mean [3]float64
}

// Summarise computes per-cell statistics over samples. All samples must
// have the same cell count as the first.
func Summarise(samples []adcp.VelocitySample) []CellSummary {
	if len(samples) == 0 {
		return nil
	}
	cells := samples[0].Cells
	n := len(samples[0].Components)

	out := make([]CellSummary, n)
	speed := make([]float64, len(samples))
	comp := make([]float64, len(samples))
	for c := range n {
		out[c].Index = c
		if c < len(cells) {
			out[c].Cell = cells[c]
		}
		for i, s := range samples {
			v := s.Components[c]
			speed[i] = math.Hypot(v[0], v[1])
		}
		if len(samples) > 1 {
			out[c].MeanSpeed, out[c].StdSpeed = stat.MeanStdDev(speed, nil)
		} else {
			out[c].MeanSpeed = speed[0]
		}
		for k := range 3 {
			for i, s := range samples {
				comp[i] = s.Components[c][k]
			}
			out[c].Mean[k] = stat.Mean(comp, nil)
		}
	}
	return out
}
