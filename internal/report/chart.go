package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderProfileChart renders an HTML line chart of the mean profile: mean
// horizontal speed and mean components against cell position.
func RenderProfileChart(w io.Writer, summary []CellSummary, title string, labels [3]string) error {
	if len(summary) == 0 {
		return fmt.Errorf("no cells to chart")
	}

	xs := make([]string, len(summary))
	speed := make([]opts.LineData, len(summary))
	var comps [3][]opts.LineData
	for k := range comps {
		comps[k] = make([]opts.LineData, len(summary))
	}
	for i, s := range summary {
		xs[i] = strconv.FormatFloat(s.Cell, 'f', -1, 64)
		speed[i] = opts.LineData{Value: s.MeanSpeed}
		for k := range comps {
			comps[k][i] = opts.LineData{Value: s.Mean[k]}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("cells=%d", len(summary))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cell (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Velocity (m/s)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(xs).AddSeries("mean speed", speed)
	for k := range comps {
		line.AddSeries("mean "+labels[k], comps[k])
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render profile chart: %w", err)
	}
	return nil
}
