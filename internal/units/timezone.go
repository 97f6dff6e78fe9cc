package units

import (
	"fmt"
	"time"
)

// IsTimezoneValid checks if the given timezone is valid by attempting to load it from the tz database
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// LoadTimezone resolves the timezone a log was recorded in. An empty name
// means the local timezone.
func LoadTimezone(tz string) (*time.Location, error) {
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}

// ConvertTime converts a stored time to the specified timezone for display.
func ConvertTime(t time.Time, targetTimezone string) (time.Time, error) {
	if targetTimezone == "UTC" {
		return t.UTC(), nil
	}
	loc, err := LoadTimezone(targetTimezone)
	if err != nil {
		return t, err
	}
	return t.In(loc), nil
}
