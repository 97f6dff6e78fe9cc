// Package units provides shared constants and validation for walking speed
// units and recording timezones.
package units

import "strings"

// Unit constants
const (
	MPM  = "mpm" // metres per minute
	MPS  = "mps"
	KMPH = "kmph"
	CMPS = "cmps"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPM, MPS, KMPH, CMPS}

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

// ConvertSpeed converts a speed from metres per minute to the target units.
// Statistics are computed in m/min.
func ConvertSpeed(speedMPM float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPM / 60
	case KMPH:
		return speedMPM * 60 / 1000
	case CMPS:
		return speedMPM * 100 / 60
	default:
		return speedMPM
	}
}

// Label returns the column label for a unit.
func Label(unit string) string {
	switch unit {
	case MPS:
		return "m/s"
	case KMPH:
		return "km/h"
	case CMPS:
		return "cm/s"
	default:
		return "m/min"
	}
}
