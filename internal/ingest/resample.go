package ingest

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motion.report/internal/motion"
)

// msSince returns t - start in milliseconds.
func msSince(start, t time.Time) float64 {
	return float64(t.Sub(start)) / float64(time.Millisecond)
}

func lerp(a, b r3.Vec, frac float64) r3.Vec {
	return r3.Add(a, r3.Scale(frac, r3.Sub(b, a)))
}

// Resample interpolates one user's records onto the grid start + k*stepMs,
// from start up to the user's last record. Grid points before the first
// record take its values. records need not be sorted.
func Resample(records []HeadRecord, start time.Time, stepMs float64) []motion.Sample {
	if len(records) == 0 || stepMs <= 0 {
		return nil
	}
	sorted := append([]HeadRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	last := msSince(start, sorted[len(sorted)-1].Time)
	var out []motion.Sample
	j := 0
	for k := 0; ; k++ {
		t := float64(k) * stepMs
		if t > last {
			break
		}
		for j+1 < len(sorted) && msSince(start, sorted[j+1].Time) <= t {
			j++
		}
		cur := sorted[j]
		curMs := msSince(start, cur.Time)
		s := motion.Sample{TimestampMs: t, Position: cur.Position, Orientation: cur.Orientation}
		if t > curMs && j+1 < len(sorted) {
			next := sorted[j+1]
			nextMs := msSince(start, next.Time)
			frac := (t - curMs) / (nextMs - curMs)
			s.Position = lerp(cur.Position, next.Position, frac)
			s.Orientation = lerp(cur.Orientation, next.Orientation, frac)
		}
		out = append(out, s)
	}
	return out
}
