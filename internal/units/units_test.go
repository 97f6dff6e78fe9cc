package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPM float64
		units    string
		expected float64
	}{
		{"60 m/min to mps", 60, MPS, 1},
		{"60 m/min to kmph", 60, KMPH, 3.6},
		{"60 m/min to cmps", 60, CMPS, 100},
		{"60 m/min to mpm", 60, MPM, 60},
		{"unknown units default to mpm", 60, "unknown", 60},
		{"zero", 0, KMPH, 0},
		{"slow walk 30 m/min to mps", 30, MPS, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedMPM, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedMPM, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mpm", MPM, true},
		{"valid mps", MPS, true},
		{"valid kmph", KMPH, true},
		{"valid cmps", CMPS, true},
		{"speed unit from a car", "mph", false},
		{"empty string", "", false},
		{"case sensitive", "MPS", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got, want := GetValidUnitsString(), "mpm, mps, kmph, cmps"; got != want {
		t.Errorf("GetValidUnitsString() = %q, want %q", got, want)
	}
}

func TestLabel(t *testing.T) {
	for unit, want := range map[string]string{MPM: "m/min", MPS: "m/s", KMPH: "km/h", CMPS: "cm/s", "": "m/min"} {
		if got := Label(unit); got != want {
			t.Errorf("Label(%q) = %q, want %q", unit, got, want)
		}
	}
}
