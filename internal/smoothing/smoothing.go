// Package smoothing computes moving averages of head position and
// orientation in constant time from a track's prefix sums.
package smoothing

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/motion"
)

// Engine averages samples over a window centred on the query index.
// The zero value is not useful; use New.
type Engine struct {
	window int
}

// New returns an Engine with the window clamped to
// [config.MinSmoothingWindow, config.MaxSmoothingWindow].
func New(window int) Engine {
	return Engine{window: ClampWindow(window)}
}

// FromConfig builds an Engine from the smoothing_window setting.
func FromConfig(cfg *config.AnalysisConfig) Engine {
	return New(cfg.GetSmoothingWindow())
}

// ClampWindow limits w to the supported smoothing range.
func ClampWindow(w int) int {
	if w < config.MinSmoothingWindow {
		return config.MinSmoothingWindow
	}
	if w > config.MaxSmoothingWindow {
		return config.MaxSmoothingWindow
	}
	return w
}

// Window returns the configured window in samples.
func (e Engine) Window() int { return e.window }

// bounds returns the exclusive lower and inclusive upper prefix indices for
// the window around i. Near the track edges the window narrows.
func (e Engine) bounds(n, i int) (lo, hi int) {
	w := e.window
	if w < config.MinSmoothingWindow {
		w = config.MinSmoothingWindow
	}
	if i < 0 {
		i = 0
	}
	if i > n-1 {
		i = n - 1
	}
	lo = i - w/2
	if lo < 0 {
		lo = 0
	}
	hi = i + (w+1)/2
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}

func (e Engine) average(n, i int, prefix func(int) r3.Vec, raw func(int) r3.Vec) r3.Vec {
	lo, hi := e.bounds(n, i)
	if hi == lo {
		return raw(i)
	}
	return r3.Scale(1/float64(hi-lo), r3.Sub(prefix(hi), prefix(lo)))
}

// Position returns the smoothed position at sample index i.
func (e Engine) Position(track *motion.UserTrack, i int) r3.Vec {
	return e.average(track.Len(), i, track.PositionPrefix, func(k int) r3.Vec {
		return track.Sample(k).Position
	})
}

// Orientation returns the smoothed orientation at sample index i.
func (e Engine) Orientation(track *motion.UserTrack, i int) r3.Vec {
	return e.average(track.Len(), i, track.OrientationPrefix, func(k int) r3.Vec {
		return track.Sample(k).Orientation
	})
}

// PositionAt returns the smoothed position at the last sample at or before tMs.
func (e Engine) PositionAt(track *motion.UserTrack, tMs float64) r3.Vec {
	return e.Position(track, track.IndexAt(tMs))
}

// OrientationAt returns the smoothed orientation at the last sample at or
// before tMs.
func (e Engine) OrientationAt(track *motion.UserTrack, tMs float64) r3.Vec {
	return e.Orientation(track, track.IndexAt(tMs))
}
