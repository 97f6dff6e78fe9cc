// Package stats computes the per-user figures shown in the statistics
// panel for a time interval.
package stats

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/motion.report/internal/motion"
)

const msPerMinute = 60000

// UserStats holds one user's figures for an interval.
type UserStats struct {
	UserID           int
	MetresPerMinute  float64 // floor-plane distance travelled
	MeanWallDistCm   float64 // mean z
	TouchesPerMinute float64
	TouchCount       int
	DistTravelledCm  float64
}

// Interval returns figures for every user in s over [startMs, endMs].
func Interval(s *motion.Session, startMs, endMs float64) ([]UserStats, error) {
	if endMs <= startMs {
		return nil, fmt.Errorf("invalid interval [%.1f, %.1f]", startMs, endMs)
	}
	minutes := (endMs - startMs) / msPerMinute

	out := make([]UserStats, 0, len(s.Users))
	for _, u := range s.Users {
		dist := u.DistTravelled(startMs, endMs)
		touches := len(u.Touches(startMs, endMs))

		xz := u.HeadXZPositions(startMs, endMs)
		z := make([]float64, len(xz))
		for i, p := range xz {
			z[i] = p.Y
		}

		out = append(out, UserStats{
			UserID:           u.UserID,
			MetresPerMinute:  dist / 100 / minutes,
			MeanWallDistCm:   stat.Mean(z, nil),
			TouchesPerMinute: float64(touches) / minutes,
			TouchCount:       touches,
			DistTravelledCm:  dist,
		})
	}
	return out, nil
}

// AxisRange is the [Min, Max] span of one statistics axis.
type AxisRange struct {
	Min, Max float64
}

// AxisRanges returns axis spans sized for the whole session: zero up to
// twice the largest per-user value, in the order movement, wall distance,
// touches.
func AxisRanges(s *motion.Session) ([3]AxisRange, error) {
	var ranges [3]AxisRange
	all, err := Interval(s, 0, s.DurationMs)
	if err != nil {
		return ranges, err
	}
	cols := [3][]float64{}
	for _, st := range all {
		cols[0] = append(cols[0], st.MetresPerMinute)
		cols[1] = append(cols[1], st.MeanWallDistCm)
		cols[2] = append(cols[2], st.TouchesPerMinute)
	}
	for i, col := range cols {
		if len(col) == 0 {
			continue
		}
		ranges[i] = AxisRange{Min: 0, Max: 2 * floats.Max(col)}
	}
	return ranges, nil
}
