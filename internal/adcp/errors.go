package adcp

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedHeader reports a calibration header that is missing
	// required fields or has an unparsable cell row.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrMalformedMatrix reports a transformation matrix with the wrong
	// shape or non-numeric entries.
	ErrMalformedMatrix = errors.New("malformed transformation matrix")
	// ErrAlignment reports attitude and velocity sequences that cannot be
	// paired sample by sample.
	ErrAlignment = errors.New("attitude and velocity are not aligned")
	// ErrSingularRotation reports a rotation matrix that cannot be inverted.
	ErrSingularRotation = errors.New("singular rotation matrix")
)

// HeaderLineError locates a header parse failure.
type HeaderLineError struct {
	Line   int // 1-based
	Text   string
	Reason string
}

func (e *HeaderLineError) Error() string {
	return fmt.Sprintf("%v: line %d: %s: %q", ErrMalformedHeader, e.Line, e.Reason, e.Text)
}

func (e *HeaderLineError) Unwrap() error { return ErrMalformedHeader }

// SingularRotationError identifies the first timestamp whose rotation
// matrix could not be inverted.
type SingularRotationError struct {
	Index     int
	Timestamp time.Time
	Det       float64
}

func (e *SingularRotationError) Error() string {
	return fmt.Sprintf("%v at sample %d (%s): det=%g",
		ErrSingularRotation, e.Index, e.Timestamp.Format(time.RFC3339Nano), e.Det)
}

func (e *SingularRotationError) Unwrap() error { return ErrSingularRotation }
