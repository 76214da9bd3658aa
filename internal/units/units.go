// Package units provides shared constants and validation for velocity units
package units

import "strings"

// Unit constants
const (
	MPS  = "mps"
	CMPS = "cmps"
	MMPS = "mmps"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, CMPS, MMPS}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// Scale returns the factor that converts a velocity in m/s (as the
// instrument records it) to the target units. Unknown units scale by 1.
func Scale(targetUnits string) float64 {
	switch targetUnits {
	case CMPS:
		return 100
	case MMPS:
		return 1000
	default:
		return 1
	}
}
