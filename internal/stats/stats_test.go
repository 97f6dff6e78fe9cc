package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motion.report/internal/motion"
)

// walker moves 1 m along x every 6 s at 100 cm from the wall for two
// minutes and touches the wall every 20 s.
func walker(t *testing.T, id int) *motion.UserTrack {
	t.Helper()
	var samples []motion.Sample
	for ts := 0.0; ts <= 120000; ts += 1000 {
		samples = append(samples, motion.Sample{
			TimestampMs: ts,
			Position:    r3.Vec{X: ts / 60, Y: 170, Z: 100},
		})
	}
	var touches []motion.Touch
	for ts := 10000.0; ts < 120000; ts += 20000 {
		touches = append(touches, motion.Touch{TimestampMs: ts, Position: r2.Vec{X: 1, Y: 1}, DurationMs: 300})
	}
	track, err := motion.NewUserTrack(id, samples, touches)
	require.NoError(t, err)
	return track
}

func stander(t *testing.T, id int) *motion.UserTrack {
	t.Helper()
	var samples []motion.Sample
	for ts := 0.0; ts <= 120000; ts += 1000 {
		z := 200.0
		if int(ts/1000)%2 == 1 {
			z = 300
		}
		samples = append(samples, motion.Sample{TimestampMs: ts, Position: r3.Vec{X: 50, Y: 160, Z: z}})
	}
	track, err := motion.NewUserTrack(id, samples, nil)
	require.NoError(t, err)
	return track
}

func TestInterval(t *testing.T) {
	s, err := motion.NewSession(time.Time{}, []*motion.UserTrack{walker(t, 1), stander(t, 2)})
	require.NoError(t, err)

	got, err := Interval(s, 0, 60000)
	require.NoError(t, err)
	require.Len(t, got, 2)

	w := got[0]
	assert.Equal(t, 1, w.UserID)
	assert.InDelta(t, 10, w.MetresPerMinute, 1e-9)
	assert.InDelta(t, 1000, w.DistTravelledCm, 1e-9)
	assert.InDelta(t, 100, w.MeanWallDistCm, 1e-9)
	assert.Equal(t, 3, w.TouchCount)
	assert.InDelta(t, 3, w.TouchesPerMinute, 1e-9)

	st := got[1]
	assert.InDelta(t, 0.6*100, st.MetresPerMinute, 1e-9) // 60 steps of 1 m in z
	assert.InDelta(t, 250-50.0/61, st.MeanWallDistCm, 1e-9)
	assert.Equal(t, 0, st.TouchCount)

	_, err = Interval(s, 5000, 5000)
	assert.Error(t, err)
}

func TestAxisRanges(t *testing.T) {
	s, err := motion.NewSession(time.Time{}, []*motion.UserTrack{walker(t, 1), stander(t, 2)})
	require.NoError(t, err)

	ranges, err := AxisRanges(s)
	require.NoError(t, err)
	assert.InDelta(t, 120, ranges[0].Max, 1e-9)
	assert.Equal(t, 0.0, ranges[0].Min)
	assert.InDelta(t, 2*(250-50.0/121), ranges[1].Max, 1e-9)
	assert.InDelta(t, 2*3, ranges[2].Max, 1e-9)
}
