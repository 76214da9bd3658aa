package adcp

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ParseMatrixRows parses the three transformation matrix rows captured from
// a header. The "Transformation matrix" label and surrounding padding are
// stripped from each row.
func ParseMatrixRows(lines []string) (*mat.Dense, error) {
	if len(lines) < 3 {
		return nil, fmt.Errorf("%w: %d rows, want 3", ErrMalformedMatrix, len(lines))
	}
	rows := make([]string, 3)
	for i, l := range lines[:3] {
		l = strings.TrimSpace(l)
		rows[i] = strings.TrimSpace(strings.TrimPrefix(l, matrixLabel))
	}
	return parseRows(rows)
}

// ParseMatrixLiteral parses a 3x3 matrix written as rows separated by ';'
// or newlines, with entries separated by whitespace or commas, e.g.
// "1.5774 -0.7891 -0.7891; 0 -1.3662 1.3662; 0.3677 0.3677 0.3677".
func ParseMatrixLiteral(s string) (*mat.Dense, error) {
	var rows []string
	for _, r := range strings.FieldsFunc(s, func(c rune) bool { return c == ';' || c == '\n' }) {
		if strings.TrimSpace(r) != "" {
			rows = append(rows, r)
		}
	}
	if len(rows) != 3 {
		return nil, fmt.Errorf("%w: %d rows, want 3", ErrMalformedMatrix, len(rows))
	}
	return parseRows(rows)
}

func parseRows(rows []string) (*mat.Dense, error) {
	data := make([]float64, 0, 9)
	for i, row := range rows {
		f := strings.FieldsFunc(row, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t'
		})
		if len(f) != 3 {
			return nil, fmt.Errorf("%w: row %d has %d entries, want 3", ErrMalformedMatrix, i+1, len(f))
		}
		for _, tok := range f {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedMatrix, i+1, err)
			}
			data = append(data, v)
		}
	}
	return mat.NewDense(3, 3, data), nil
}

// CalibrationMatrix applies the mounting orientation to the raw
// transformation matrix. For a downlooking instrument rows 1 and 2 are
// negated. raw is never modified, so building twice from the same raw
// matrix yields the same result.
func CalibrationMatrix(raw mat.Matrix, o Orientation) *mat.Dense {
	t := mat.DenseCopyOf(raw)
	if o == Downlooking {
		for _, i := range []int{1, 2} {
			row := t.RawRowView(i)
			for j := range row {
				row[j] = -row[j]
			}
		}
	}
	return t
}
