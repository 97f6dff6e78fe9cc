package motion

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrEmptyTrack is returned when a track has no samples.
	ErrEmptyTrack = errors.New("motion: track has no samples")
	// ErrUnordered is returned when sample timestamps decrease.
	ErrUnordered = errors.New("motion: sample timestamps are not ordered")
)

// Sample is one head pose at a point in time.
type Sample struct {
	TimestampMs float64 // milliseconds since session start
	Position    r3.Vec  // cm; x along the wall, y up, z away from the wall
	Orientation r3.Vec  // degrees; X=yaw, Y=pitch, Z=roll
}

// Touch is a single contact on the wall display.
type Touch struct {
	TimestampMs float64
	Position    r2.Vec // wall pixels
	DurationMs  float64
}

// UserTrack holds one user's samples together with inclusive prefix sums
// over position and orientation: P[i] = P[i-1] + v[i].
type UserTrack struct {
	UserID int

	samples   []Sample
	posSum    []r3.Vec
	orientSum []r3.Vec
	touches   []Touch
}

// NewUserTrack validates samples and builds the prefix sums. The slices are
// copied; the caller may reuse them afterwards.
func NewUserTrack(userID int, samples []Sample, touches []Touch) (*UserTrack, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("user %d: %w", userID, ErrEmptyTrack)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].TimestampMs < samples[i-1].TimestampMs {
			return nil, fmt.Errorf("user %d at index %d (%.1f < %.1f): %w",
				userID, i, samples[i].TimestampMs, samples[i-1].TimestampMs, ErrUnordered)
		}
	}

	t := &UserTrack{
		UserID:    userID,
		samples:   append([]Sample(nil), samples...),
		posSum:    make([]r3.Vec, len(samples)),
		orientSum: make([]r3.Vec, len(samples)),
	}
	var pos, orient r3.Vec
	for i, s := range t.samples {
		pos = r3.Add(pos, s.Position)
		orient = r3.Add(orient, s.Orientation)
		t.posSum[i] = pos
		t.orientSum[i] = orient
	}

	if len(touches) > 0 {
		t.touches = append([]Touch(nil), touches...)
		sort.SliceStable(t.touches, func(i, j int) bool {
			return t.touches[i].TimestampMs < t.touches[j].TimestampMs
		})
	}
	return t, nil
}

// Len returns the number of samples.
func (t *UserTrack) Len() int { return len(t.samples) }

// Sample returns the sample at index i, clamped to the valid range.
func (t *UserTrack) Sample(i int) Sample { return t.samples[t.clamp(i)] }

// PositionPrefix returns the inclusive position prefix sum at index i.
func (t *UserTrack) PositionPrefix(i int) r3.Vec { return t.posSum[t.clamp(i)] }

// OrientationPrefix returns the inclusive orientation prefix sum at index i.
func (t *UserTrack) OrientationPrefix(i int) r3.Vec { return t.orientSum[t.clamp(i)] }

// StartMs returns the timestamp of the first sample.
func (t *UserTrack) StartMs() float64 { return t.samples[0].TimestampMs }

// EndMs returns the timestamp of the last sample.
func (t *UserTrack) EndMs() float64 { return t.samples[len(t.samples)-1].TimestampMs }

// IndexAt returns the index of the last sample whose timestamp is <= tMs.
// Times before the first sample map to 0 and times past the end map to the
// last index.
func (t *UserTrack) IndexAt(tMs float64) int {
	// first index with timestamp > tMs
	n := sort.Search(len(t.samples), func(i int) bool {
		return t.samples[i].TimestampMs > tMs
	})
	return t.clamp(n - 1)
}

// Touches returns the touches whose timestamp lies in [startMs, endMs].
func (t *UserTrack) Touches(startMs, endMs float64) []Touch {
	lo := sort.Search(len(t.touches), func(i int) bool {
		return t.touches[i].TimestampMs >= startMs
	})
	hi := sort.Search(len(t.touches), func(i int) bool {
		return t.touches[i].TimestampMs > endMs
	})
	if lo >= hi {
		return nil
	}
	return t.touches[lo:hi:hi]
}

// DistTravelled returns the floor-plane path length in cm between the
// samples at startMs and endMs.
func (t *UserTrack) DistTravelled(startMs, endMs float64) float64 {
	lo, hi := t.IndexAt(startMs), t.IndexAt(endMs)
	var total float64
	for i := lo + 1; i <= hi; i++ {
		total += r2.Norm(r2.Sub(FloorXZ(t.samples[i].Position), FloorXZ(t.samples[i-1].Position)))
	}
	return total
}

// HeadXZPositions returns the floor-plane positions of the samples in
// [startMs, endMs].
func (t *UserTrack) HeadXZPositions(startMs, endMs float64) []r2.Vec {
	lo, hi := t.IndexAt(startMs), t.IndexAt(endMs)
	out := make([]r2.Vec, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, FloorXZ(t.samples[i].Position))
	}
	return out
}

func (t *UserTrack) clamp(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(t.samples) {
		return len(t.samples) - 1
	}
	return i
}

// FloorXZ projects a position onto the floor plane.
func FloorXZ(p r3.Vec) r2.Vec { return r2.Vec{X: p.X, Y: p.Z} }

// LookXZ returns the floor-plane unit look direction for an orientation
// whose X component is yaw in degrees.
func LookXZ(orientation r3.Vec) r2.Vec {
	yaw := orientation.X * math.Pi / 180
	return r2.Vec{X: math.Cos(yaw), Y: math.Sin(yaw)}
}
