package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/beam2enu/internal/adcp"
)

var componentColors = [3]color.Color{
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
}

// PlotCell writes a PNG time series of the three velocity components of one
// cell to w. The x axis is seconds since the first sample.
func PlotCell(w io.Writer, samples []adcp.VelocitySample, cell int, labels [3]string) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to plot")
	}
	if cell < 0 || cell >= len(samples[0].Components) {
		return fmt.Errorf("cell %d out of range (have %d)", cell, len(samples[0].Components))
	}

	p := plot.New()
	depth := ""
	if cell < len(samples[0].Cells) {
		depth = fmt.Sprintf(" (%g m)", samples[0].Cells[cell])
	}
	p.Title.Text = fmt.Sprintf("Cell %d%s", cell+1, depth)
	p.X.Label.Text = "Time since start (s)"
	p.Y.Label.Text = "Velocity (m/s)"

	start := samples[0].Timestamp
	for k := range 3 {
		pts := make(plotter.XYs, len(samples))
		for i, s := range samples {
			pts[i] = plotter.XY{X: s.Timestamp.Sub(start).Seconds(), Y: s.Components[cell][k]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = componentColors[k]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(labels[k], line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("create cell plot canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write cell plot: %w", err)
	}
	return nil
}
