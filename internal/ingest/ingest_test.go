package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
)

func init() {
	monitoring.SetLogger(nil)
}

var sessionDate = time.Date(2016, 3, 17, 0, 0, 0, 0, time.UTC)

const headCSV = `time,userid,pos,rot
15:12:15.000,1,"(-1.0, 1.7, -0.5)","(10, 0, 0)"
15:12:15.200,1,"(-2.0, 1.7, -0.5)","(30, 2, 0)"
15:12:15.100,2,"(0.5, 1.6, -1.0)","(180, 0, 0)"
15:12:15.300,2,"(0.5, 1.6, -2.0)","(180, 0, 0)"
`

const touchCSV = `15:12:15.150,1,"(1024, 300)",120
15:12:14.000,2,"(10, 10)",50
15:12:15.250,2,"(500, 700)",80
`

func TestParseCSVTime(t *testing.T) {
	got, err := ParseCSVTime(sessionDate, "15:12:15.123")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 3, 17, 15, 12, 15, 123_000_000, time.UTC), got)

	_, err = ParseCSVTime(sessionDate, "quarter past")
	assert.Error(t, err)
}

func TestReadHeadCSV(t *testing.T) {
	records, err := ReadHeadCSV(strings.NewReader(headCSV), sessionDate)
	require.NoError(t, err)
	require.Len(t, records, 4)

	first := records[0]
	assert.Equal(t, 1, first.UserID)
	// metres to cm, x and z flipped
	assert.InDelta(t, 100, first.Position.X, 1e-9)
	assert.InDelta(t, 170, first.Position.Y, 1e-9)
	assert.InDelta(t, 50, first.Position.Z, 1e-9)
	assert.Equal(t, r3.Vec{X: 10}, first.Orientation)
}

func TestReadHeadCSV_Errors(t *testing.T) {
	_, err := ReadHeadCSV(strings.NewReader(`15:12:15.000,x,"(0, 0, 0)","(0, 0, 0)"`), sessionDate)
	assert.ErrorContains(t, err, "invalid user id")

	_, err = ReadHeadCSV(strings.NewReader(`15:12:15.000,1,"(0, 0)","(0, 0, 0)"`), sessionDate)
	assert.ErrorContains(t, err, "expected 3 values")

	_, err = ReadHeadCSV(strings.NewReader("15:12:15.000,1\n"), sessionDate)
	assert.ErrorContains(t, err, "failed to read CSV")
}

func TestReadTouchCSV(t *testing.T) {
	touches, err := ReadTouchCSV(strings.NewReader(touchCSV), sessionDate)
	require.NoError(t, err)
	require.Len(t, touches, 3)
	assert.Equal(t, r2.Vec{X: 1024, Y: 300}, touches[0].Position)
	assert.Equal(t, 120.0, touches[0].DurationMs)
	assert.Equal(t, 2, touches[2].UserID)
}

func TestResample(t *testing.T) {
	start := time.Date(2016, 3, 17, 15, 12, 15, 0, time.UTC)
	records := []HeadRecord{
		{Time: start.Add(200 * time.Millisecond), Position: r3.Vec{X: 20}, Orientation: r3.Vec{X: 40}},
		{Time: start.Add(50 * time.Millisecond), Position: r3.Vec{X: 5}, Orientation: r3.Vec{X: 10}},
	}
	samples := Resample(records, start, 50)

	require.Len(t, samples, 5)
	wantX := []float64{5, 5, 10, 15, 20}
	for i, s := range samples {
		assert.Equal(t, float64(i*50), s.TimestampMs)
		assert.InDelta(t, wantX[i], s.Position.X, 1e-9, "sample %d", i)
	}
	assert.InDelta(t, 20, samples[2].Orientation.X, 1e-9)

	assert.Nil(t, Resample(nil, start, 50))
	assert.Nil(t, Resample(records, start, 0))
}

type fakeStore struct {
	start   time.Time
	head    map[int][]motion.Sample
	touches map[int][]motion.Touch
}

func newFakeStore() *fakeStore {
	return &fakeStore{head: map[int][]motion.Sample{}, touches: map[int][]motion.Touch{}}
}

func (f *fakeStore) SetSessionStart(_ context.Context, start time.Time) error {
	f.start = start
	return nil
}

func (f *fakeStore) InsertHeadSamples(_ context.Context, id int, s []motion.Sample) error {
	f.head[id] = append(f.head[id], s...)
	return nil
}

func (f *fakeStore) InsertTouches(_ context.Context, id int, ts []motion.Touch) error {
	f.touches[id] = append(f.touches[id], ts...)
	return nil
}

func TestImport(t *testing.T) {
	store := newFakeStore()
	sum, err := Import(context.Background(), store,
		strings.NewReader(headCSV), strings.NewReader(touchCSV), sessionDate, 100)
	require.NoError(t, err)

	wantStart := time.Date(2016, 3, 17, 15, 12, 15, 0, time.UTC)
	assert.Equal(t, wantStart, store.start)
	assert.Equal(t, 4, sum.HeadRows)
	assert.Equal(t, 300.0, sum.DurationMs)
	assert.Equal(t, map[int]int{1: 3, 2: 4}, sum.Samples)
	assert.Equal(t, 1, sum.SkippedTouch)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, sum.Touches)

	// User 1 moves from x=100 to x=200 cm over 200 ms.
	u1 := store.head[1]
	assert.InDelta(t, 150, u1[1].Position.X, 1e-9)
	// User 2 holds its first pose until its first row at 100 ms.
	u2 := store.head[2]
	assert.Equal(t, u2[0].Position, u2[1].Position)
	assert.InDelta(t, 150, u2[2].Position.Z, 1e-9)

	assert.Equal(t, 250.0, store.touches[2][0].TimestampMs)
}

func TestImport_EmptyTrackerLog(t *testing.T) {
	_, err := Import(context.Background(), newFakeStore(), strings.NewReader(""), nil, sessionDate, 100)
	assert.ErrorIs(t, err, motion.ErrEmptyTrack)
}

func TestImport_IntoDatabase(t *testing.T) {
	ctx := context.Background()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	defer database.Close()

	_, err = Import(ctx, database, strings.NewReader(headCSV), strings.NewReader(touchCSV), sessionDate, 100)
	require.NoError(t, err)

	session, err := database.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, session.UserIDs())
	assert.Equal(t, 300.0, session.DurationMs)
	assert.Len(t, session.User(1).Touches(0, 1000), 1)
	assert.True(t, session.StartTime.Equal(time.Date(2016, 3, 17, 15, 12, 15, 0, time.UTC)))
}
