package formation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motion.report/internal/motion"
)

// Strength grades a pair at one instant.
type Strength int

const (
	StrengthNone      Strength = iota // too far apart
	StrengthPartial                   // close but at least one user looks away
	StrengthConfirmed                 // close and facing each other
)

func (s Strength) String() string {
	switch s {
	case StrengthNone:
		return "none"
	case StrengthPartial:
		return "partial"
	case StrengthConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Thresholds bound distance and gaze deviation for a formation.
type Thresholds struct {
	DistanceMaxCm float64
	AngleMaxDeg   float64
}

// Classify grades two users from their smoothed positions and orientations.
// Distances and bearings are measured on the floor plane (x, z).
func Classify(posA, orientA, posB, orientB r3.Vec, th Thresholds) Strength {
	a, b := motion.FloorXZ(posA), motion.FloorXZ(posB)
	if r2.Norm(r2.Sub(b, a)) > th.DistanceMaxCm {
		return StrengthNone
	}
	angleA := AngleDeg(motion.LookXZ(orientA), r2.Sub(b, a))
	angleB := AngleDeg(motion.LookXZ(orientB), r2.Sub(a, b))
	if angleA <= th.AngleMaxDeg && angleB <= th.AngleMaxDeg {
		return StrengthConfirmed
	}
	return StrengthPartial
}

// AngleDeg returns the angle between u and v in degrees, in [0, 180].
// A zero-length vector yields 0.
func AngleDeg(u, v r2.Vec) float64 {
	nu, nv := r2.Norm(u), r2.Norm(v)
	if nu == 0 || nv == 0 {
		return 0
	}
	c := r2.Dot(u, v) / (nu * nv)
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}
