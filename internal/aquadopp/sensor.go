// Package aquadopp reads and writes the text files produced by Nortek
// Aquadopp profilers: the .sen sensor log, the .v1/.v2/.v3 velocity tables
// and CSV output of converted velocities.
package aquadopp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/beam2enu/internal/adcp"
)

// ErrMalformedRecord reports a data row that cannot be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// sensorColumns is the minimum column count of a .sen row: everything up to
// and including roll.
const sensorColumns = 15

// SensorRecord is one row of a .sen file.
type SensorRecord struct {
	Timestamp       time.Time
	BurstCounter    int
	EnsembleCounter int
	ErrorCode       int
	StatusCode      int
	BatteryVoltage  float64
	SoundSpeed      float64
	Heading         float64 // degrees
	Pitch           float64 // degrees
	Roll            float64 // degrees
	Pressure        float64
	Temperature     float64
	Analog1         float64
	Analog2         float64
}

// ReadSensor parses a .sen file. Clock fields are interpreted in loc.
//
// Columns: month day year hour minute second burst ensemble error status
// battery soundspeed heading pitch roll [pressure temperature analog1 analog2].
func ReadSensor(r io.Reader, loc *time.Location) ([]SensorRecord, error) {
	if loc == nil {
		loc = time.UTC
	}
	var out []SensorRecord
	sc := bufio.NewScanner(adcp.NewLegacyReader(r))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		rec, err := parseSensorRow(f, loc)
		if err != nil {
			return nil, fmt.Errorf("sen line %d: %w", lineNo, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sen file: %w", err)
	}
	return out, nil
}

func parseSensorRow(f []string, loc *time.Location) (SensorRecord, error) {
	if len(f) < sensorColumns {
		return SensorRecord{}, fmt.Errorf("%w: %d columns, want at least %d", ErrMalformedRecord, len(f), sensorColumns)
	}
	v := make([]float64, len(f))
	for i, tok := range f {
		x, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return SensorRecord{}, fmt.Errorf("%w: column %d: %v", ErrMalformedRecord, i+1, err)
		}
		v[i] = x
	}

	sec, frac := math.Modf(v[5])
	ts := time.Date(int(v[2]), time.Month(int(v[0])), int(v[1]),
		int(v[3]), int(v[4]), int(sec), int(math.Round(frac*1e9)), loc)

	rec := SensorRecord{
		Timestamp:       ts,
		BurstCounter:    int(v[6]),
		EnsembleCounter: int(v[7]),
		ErrorCode:       int(v[8]),
		StatusCode:      int(v[9]),
		BatteryVoltage:  v[10],
		SoundSpeed:      v[11],
		Heading:         v[12],
		Pitch:           v[13],
		Roll:            v[14],
	}
	optional := []*float64{&rec.Pressure, &rec.Temperature, &rec.Analog1, &rec.Analog2}
	for i, dst := range optional {
		if sensorColumns+i < len(v) {
			*dst = v[sensorColumns+i]
		}
	}
	return rec, nil
}

// Attitude converts sensor records into attitude samples, removing
// headingOffsetDeg from each heading.
func Attitude(records []SensorRecord, headingOffsetDeg float64) []adcp.AttitudeSample {
	out := make([]adcp.AttitudeSample, len(records))
	for i, r := range records {
		out[i] = adcp.AttitudeFromDegrees(r.Timestamp, r.Heading, r.Pitch, r.Roll, headingOffsetDeg)
	}
	return out
}

// Timestamps returns the timestamp index of records.
func Timestamps(records []SensorRecord) []time.Time {
	out := make([]time.Time, len(records))
	for i, r := range records {
		out[i] = r.Timestamp
	}
	return out
}
