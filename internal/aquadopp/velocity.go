package aquadopp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/beam2enu/internal/adcp"
)

// Components names the three velocity component files in order.
var Components = [3]string{"v1", "v2", "v3"}

type velocityRow struct {
	burst, ping int
	values      []float64
}

// ReadVelocity reads the three velocity component tables and pairs their
// rows with timestamps. Each table row is "burst ping cell1 ... cellN" with
// one column per entry of cells. Every table must have one row per
// timestamp and the burst/ping columns must agree across tables.
func ReadVelocity(comps [3]io.Reader, timestamps []time.Time, cells []float64) ([]adcp.VelocitySample, error) {
	var tables [3][]velocityRow
	for k, r := range comps {
		rows, err := readVelocityTable(r, len(cells))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", Components[k], err)
		}
		if len(rows) != len(timestamps) {
			return nil, fmt.Errorf("%s: %w: %d rows for %d sensor records",
				Components[k], adcp.ErrAlignment, len(rows), len(timestamps))
		}
		tables[k] = rows
	}

	out := make([]adcp.VelocitySample, len(timestamps))
	for i, ts := range timestamps {
		first := tables[0][i]
		for k := 1; k < 3; k++ {
			if row := tables[k][i]; row.burst != first.burst || row.ping != first.ping {
				return nil, fmt.Errorf("%s row %d: %w: burst/ping %d/%d, %s has %d/%d",
					Components[k], i+1, adcp.ErrAlignment, row.burst, row.ping, Components[0], first.burst, first.ping)
			}
		}
		s := adcp.VelocitySample{
			Timestamp:  ts,
			Burst:      first.burst,
			Ping:       first.ping,
			Cells:      cells,
			Components: make([][3]float64, len(cells)),
		}
		for c := range cells {
			s.Components[c] = [3]float64{tables[0][i].values[c], tables[1][i].values[c], tables[2][i].values[c]}
		}
		out[i] = s
	}
	return out, nil
}

func readVelocityTable(r io.Reader, cells int) ([]velocityRow, error) {
	var rows []velocityRow
	sc := bufio.NewScanner(adcp.NewLegacyReader(r))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		if len(f) != cells+2 {
			return nil, fmt.Errorf("line %d: %w: %d columns, want %d", lineNo, ErrMalformedRecord, len(f), cells+2)
		}
		burst, err := strconv.Atoi(f[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: burst: %v", lineNo, ErrMalformedRecord, err)
		}
		ping, err := strconv.Atoi(f[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: ping: %v", lineNo, ErrMalformedRecord, err)
		}
		row := velocityRow{burst: burst, ping: ping, values: make([]float64, cells)}
		for c := range cells {
			if row.values[c], err = strconv.ParseFloat(f[c+2], 64); err != nil {
				return nil, fmt.Errorf("line %d: %w: cell %d: %v", lineNo, ErrMalformedRecord, c+1, err)
			}
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
