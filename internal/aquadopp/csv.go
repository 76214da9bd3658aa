package aquadopp

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/beam2enu/internal/adcp"
)

// TimestampLayout is the layout of the TS column in CSV output.
const TimestampLayout = "2006-01-02 15:04:05.999999"

// CSVOptions controls number formatting in CSV output.
type CSVOptions struct {
	// Precision is the number of decimals written for velocities.
	Precision int
	// Scale multiplies every velocity before formatting.
	Scale float64
}

// DefaultCSVOptions writes m/s with five decimals.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{Precision: 5, Scale: 1}
}

func (o CSVOptions) format(v float64) string {
	scale := o.Scale
	if scale == 0 {
		scale = 1
	}
	return strconv.FormatFloat(v*scale, 'f', o.Precision, 64)
}

func cellLabel(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

// WriteComponentCSV writes component k (0..2) of samples as a table with one
// column per cell: TS,burst,ping,<cell>,...
func WriteComponentCSV(w io.Writer, samples []adcp.VelocitySample, k int, opts CSVOptions) error {
	if k < 0 || k > 2 {
		return fmt.Errorf("component index %d out of range", k)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header(samples)); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	for _, s := range samples {
		row := identity(s)
		for _, v := range s.Components {
			row = append(row, opts.format(v[k]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCombinedCSV writes all three components in one table. Columns are
// grouped by component: TS,burst,ping,v1:<cell>,...,v2:<cell>,...,v3:<cell>,...
func WriteCombinedCSV(w io.Writer, samples []adcp.VelocitySample, opts CSVOptions) error {
	cw := csv.NewWriter(w)
	cellNames := header(samples)[3:]
	hdr := []string{"TS", "burst", "ping"}
	for _, comp := range Components {
		for _, c := range cellNames {
			hdr = append(hdr, comp+":"+c)
		}
	}
	if err := cw.Write(hdr); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	for _, s := range samples {
		row := identity(s)
		for k := range Components {
			for _, v := range s.Components {
				row = append(row, opts.format(v[k]))
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func header(samples []adcp.VelocitySample) []string {
	hdr := []string{"TS", "burst", "ping"}
	if len(samples) == 0 {
		return hdr
	}
	for _, c := range samples[0].Cells {
		hdr = append(hdr, cellLabel(c))
	}
	return hdr
}

func identity(s adcp.VelocitySample) []string {
	return []string{s.Timestamp.Format(TimestampLayout), strconv.Itoa(s.Burst), strconv.Itoa(s.Ping)}
}
