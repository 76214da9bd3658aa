package adcp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"gonum.org/v1/gonum/mat"
)

// Header line prefixes recognised by ParseHeader.
const (
	coordinateSystemLabel = "Coordinate system"
	orientationLabel      = "Orientation"
	matrixLabel           = "Transformation matrix"
)

// HeaderOptions controls ParseHeader.
type HeaderOptions struct {
	// Matrix, when non-nil, is used as the raw calibration matrix and the
	// matrix block in the header is ignored.
	Matrix *mat.Dense
}

func hasUserSuppliedMatrix(opts HeaderOptions) bool {
	return opts.Matrix != nil
}

// NewLegacyReader wraps r with a Windows-1251 decoder. Instrument software
// writes every text file in that code page.
func NewLegacyReader(r io.Reader) io.Reader {
	return charmap.Windows1251.NewDecoder().Reader(r)
}

func isBlankLine(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isSeparatorLine(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && strings.Trim(t, "-") == ""
}

func isCellTableHeader(line string) bool {
	f := strings.Fields(line)
	return len(f) == 2 && f[0] == "Beam" && f[1] == "Vertical"
}

// lastToken returns the last whitespace-delimited token of line.
func lastToken(line string) string {
	f := strings.Fields(line)
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}

// ParseHeader reads an instrument header (.hdr) and returns the instrument
// configuration together with the raw transformation matrix lines. The lines
// are nil when opts supplies the matrix.
func ParseHeader(r io.Reader, opts HeaderOptions) (*InstrumentConfig, []string, error) {
	lines, err := readLines(NewLegacyReader(r))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	cfg := &InstrumentConfig{}
	var (
		haveCoords      bool
		haveOrientation bool
		readCells       bool
		matrixLines     []string
	)

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lineNo := i + 1

		switch {
		case isBlankLine(line):
			readCells = false
			continue
		case isSeparatorLine(line):
			continue
		case strings.HasPrefix(line, coordinateSystemLabel):
			cfg.CoordinateSystem = ENU
			if lastToken(line) == "BEAM" {
				cfg.CoordinateSystem = Beam
			}
			haveCoords = true
			continue
		case strings.HasPrefix(line, orientationLabel):
			cfg.Orientation = Uplooking
			if lastToken(line) == "DOWNLOOKING" {
				cfg.Orientation = Downlooking
			}
			haveOrientation = true
			continue
		case strings.HasPrefix(line, matrixLabel):
			if hasUserSuppliedMatrix(opts) {
				continue
			}
			start := i
			// Some firmware puts the first row on the label line, some on the
			// line below it.
			if strings.TrimSpace(strings.TrimPrefix(line, matrixLabel)) == "" {
				start = i + 1
			}
			if start+3 > len(lines) {
				return nil, nil, &HeaderLineError{Line: lineNo, Text: line, Reason: "truncated transformation matrix"}
			}
			matrixLines = append([]string(nil), lines[start:start+3]...)
			i = start + 2
			continue
		case isCellTableHeader(line):
			readCells = true
			continue
		}

		if !readCells {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 3 {
			return nil, nil, &HeaderLineError{Line: lineNo, Text: line, Reason: "cell row needs 3 columns"}
		}
		beam, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return nil, nil, &HeaderLineError{Line: lineNo, Text: line, Reason: "invalid beam cell position"}
		}
		vert, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return nil, nil, &HeaderLineError{Line: lineNo, Text: line, Reason: "invalid vertical cell position"}
		}
		cfg.BeamCells = append(cfg.BeamCells, beam)
		cfg.VertCells = append(cfg.VertCells, vert)
	}

	if !haveCoords {
		return nil, nil, fmt.Errorf("%w: no %q line", ErrMalformedHeader, coordinateSystemLabel)
	}
	if !haveOrientation {
		return nil, nil, fmt.Errorf("%w: no %q line", ErrMalformedHeader, orientationLabel)
	}

	if hasUserSuppliedMatrix(opts) {
		cfg.RawCalibration = mat.DenseCopyOf(opts.Matrix)
	} else {
		if matrixLines == nil {
			return nil, nil, fmt.Errorf("%w: no %q block in header", ErrMalformedMatrix, matrixLabel)
		}
		raw, err := ParseMatrixRows(matrixLines)
		if err != nil {
			return nil, nil, err
		}
		cfg.RawCalibration = raw
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, matrixLines, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}
