package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// Smoothing window limits shared with the options panel slider.
const (
	MinSmoothingWindow = 2
	MaxSmoothingWindow = 2000
)

// Playback end policies.
const (
	PlaybackEndStop = "stop"
	PlaybackEndLoop = "loop"
)

// AnalysisConfig is the root configuration for detection, smoothing and
// interval navigation. Every field is optional; the Get* accessors supply the
// defaults for anything a file leaves out, so partial configs are safe.
type AnalysisConfig struct {
	// F-formation thresholds
	DistanceMaxCm *float64 `json:"distance_max_cm,omitempty"`
	AngleMaxDeg   *float64 `json:"angle_max_deg,omitempty"`
	MinDurationMs *float64 `json:"min_duration_ms,omitempty"`

	// Smoothing half-width in samples and the sweep/render time step
	SmoothingWindow *int     `json:"smoothing_window,omitempty"`
	TimeStepMs      *float64 `json:"time_step_ms,omitempty"`

	// Interval navigation
	ZoomStep      *float64 `json:"zoom_step,omitempty"`
	MinIntervalMs *float64 `json:"min_interval_ms,omitempty"`
	ShiftFraction *float64 `json:"shift_fraction,omitempty"` // pan distance as a fraction of the visible width
	PlaybackEnd   *string  `json:"playback_end,omitempty"`   // "stop" or "loop"

	DetectorWorkers  *int     `json:"detector_workers,omitempty"`
	MaxStrokeWidthPx *float64 `json:"max_stroke_width_px,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to nil.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.DistanceMaxCm != nil && *c.DistanceMaxCm <= 0 {
		return fmt.Errorf("distance_max_cm must be positive, got %f", *c.DistanceMaxCm)
	}
	if c.AngleMaxDeg != nil && (*c.AngleMaxDeg < 0 || *c.AngleMaxDeg > 180) {
		return fmt.Errorf("angle_max_deg must be between 0 and 180, got %f", *c.AngleMaxDeg)
	}
	if c.MinDurationMs != nil && *c.MinDurationMs < 0 {
		return fmt.Errorf("min_duration_ms must be non-negative, got %f", *c.MinDurationMs)
	}
	if c.SmoothingWindow != nil {
		if w := *c.SmoothingWindow; w < MinSmoothingWindow || w > MaxSmoothingWindow {
			return fmt.Errorf("smoothing_window must be between %d and %d, got %d",
				MinSmoothingWindow, MaxSmoothingWindow, w)
		}
	}
	if c.TimeStepMs != nil && *c.TimeStepMs <= 0 {
		return fmt.Errorf("time_step_ms must be positive, got %f", *c.TimeStepMs)
	}
	if c.ZoomStep != nil && *c.ZoomStep <= 1 {
		return fmt.Errorf("zoom_step must be greater than 1, got %f", *c.ZoomStep)
	}
	if c.MinIntervalMs != nil && *c.MinIntervalMs <= 0 {
		return fmt.Errorf("min_interval_ms must be positive, got %f", *c.MinIntervalMs)
	}
	if c.ShiftFraction != nil && (*c.ShiftFraction <= 0 || *c.ShiftFraction > 1) {
		return fmt.Errorf("shift_fraction must be in (0, 1], got %f", *c.ShiftFraction)
	}
	if c.PlaybackEnd != nil {
		switch *c.PlaybackEnd {
		case PlaybackEndStop, PlaybackEndLoop:
		default:
			return fmt.Errorf("playback_end must be %q or %q, got %q", PlaybackEndStop, PlaybackEndLoop, *c.PlaybackEnd)
		}
	}
	if c.DetectorWorkers != nil && *c.DetectorWorkers < 1 {
		return fmt.Errorf("detector_workers must be at least 1, got %d", *c.DetectorWorkers)
	}
	if c.MaxStrokeWidthPx != nil && *c.MaxStrokeWidthPx < 0 {
		return fmt.Errorf("max_stroke_width_px must be non-negative, got %f", *c.MaxStrokeWidthPx)
	}
	return nil
}

// GetDistanceMaxCm returns the distance_max_cm value or the default.
func (c *AnalysisConfig) GetDistanceMaxCm() float64 {
	if c.DistanceMaxCm == nil {
		return 100
	}
	return *c.DistanceMaxCm
}

// GetAngleMaxDeg returns the angle_max_deg value or the default.
func (c *AnalysisConfig) GetAngleMaxDeg() float64 {
	if c.AngleMaxDeg == nil {
		return 90
	}
	return *c.AngleMaxDeg
}

// GetMinDurationMs returns the min_duration_ms value or the default.
func (c *AnalysisConfig) GetMinDurationMs() float64 {
	if c.MinDurationMs == nil {
		return 10000
	}
	return *c.MinDurationMs
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *AnalysisConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 50
	}
	return *c.SmoothingWindow
}

// GetTimeStepMs returns the time_step_ms value or the default.
func (c *AnalysisConfig) GetTimeStepMs() float64 {
	if c.TimeStepMs == nil {
		return 100
	}
	return *c.TimeStepMs
}

// GetZoomStep returns the zoom_step value or the default.
func (c *AnalysisConfig) GetZoomStep() float64 {
	if c.ZoomStep == nil {
		return 1.2
	}
	return *c.ZoomStep
}

// GetMinIntervalMs returns the min_interval_ms value or the default.
func (c *AnalysisConfig) GetMinIntervalMs() float64 {
	if c.MinIntervalMs == nil {
		return 1000
	}
	return *c.MinIntervalMs
}

// GetShiftFraction returns the shift_fraction value or the default.
func (c *AnalysisConfig) GetShiftFraction() float64 {
	if c.ShiftFraction == nil {
		return 0.1
	}
	return *c.ShiftFraction
}

// GetPlaybackEnd returns the playback_end value or the default.
func (c *AnalysisConfig) GetPlaybackEnd() string {
	if c.PlaybackEnd == nil || *c.PlaybackEnd == "" {
		return PlaybackEndStop
	}
	return *c.PlaybackEnd
}

// GetDetectorWorkers returns the detector_workers value or the default.
func (c *AnalysisConfig) GetDetectorWorkers() int {
	if c.DetectorWorkers == nil {
		return 4
	}
	return *c.DetectorWorkers
}

// GetMaxStrokeWidthPx returns the max_stroke_width_px value or the default.
func (c *AnalysisConfig) GetMaxStrokeWidthPx() float64 {
	if c.MaxStrokeWidthPx == nil {
		return 20
	}
	return *c.MaxStrokeWidthPx
}
