package timeframe

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

type recorder struct {
	name   string
	log    *[]string
	events []Event
}

func (r *recorder) OnTimeFrame(ev Event) {
	r.events = append(r.events, ev)
	if r.log != nil {
		*r.log = append(*r.log, r.name)
	}
}

func newTestController(t *testing.T, cfg *config.AnalysisConfig, clock timeutil.Clock) *Controller {
	t.Helper()
	c, err := NewController(0, 60000, cfg, clock)
	require.NoError(t, err)
	return c
}

func TestNewController_Defaults(t *testing.T) {
	c := newTestController(t, nil, nil)
	assert.Equal(t, Interval{Start: 0, End: 60000}, c.Interval())
	assert.Equal(t, 1.0, c.ZoomLevel())
	assert.Equal(t, 50, c.SmoothingWindow())
	assert.Equal(t, 60000.0, c.HighlightTime())
	assert.False(t, c.Playing())

	_, err := NewController(10, 5, nil, nil)
	assert.Error(t, err)

	bad := config.EmptyAnalysisConfig()
	z := 0.5
	bad.ZoomStep = &z
	_, err = NewController(0, 10, bad, nil)
	assert.ErrorContains(t, err, "zoom_step")
}

func TestZoom_RoundTrip(t *testing.T) {
	c := newTestController(t, nil, nil)
	require.NoError(t, c.SetInterval(20000, 30000))
	before := c.Interval()

	for _, anchor := range []float64{0, 0.25, 0.5, 1} {
		require.NoError(t, c.ZoomInAt(anchor))
		require.NoError(t, c.ZoomOutAt(anchor))
		got := c.Interval()
		assert.InDelta(t, before.Start, got.Start, 1e-6, "anchor %v", anchor)
		assert.InDelta(t, before.End, got.End, 1e-6, "anchor %v", anchor)
	}
}

func TestZoom_PreservesAnchorTime(t *testing.T) {
	c := newTestController(t, nil, nil)
	require.NoError(t, c.SetInterval(20000, 30000))

	require.NoError(t, c.ZoomInAt(0.25))
	iv := c.Interval()
	assert.InDelta(t, 10000/1.2, iv.Width(), 1e-6)
	assert.InDelta(t, 22500, iv.Start+0.25*iv.Width(), 1e-6)
	assert.InDelta(t, 6*1.2, c.ZoomLevel(), 1e-9)
}

func TestZoom_MinimumWidthAndBounds(t *testing.T) {
	c := newTestController(t, nil, nil)
	require.NoError(t, c.SetInterval(100, 1500))
	for i := 0; i < 20; i++ {
		require.NoError(t, c.ZoomInAt(0.5))
	}
	assert.InDelta(t, 1000, c.Interval().Width(), 1e-9)

	// Zooming out near the start translates instead of leaving the bounds.
	require.NoError(t, c.SetInterval(0, 10000))
	require.NoError(t, c.ZoomOutAt(0.5))
	iv := c.Interval()
	assert.Equal(t, 0.0, iv.Start)
	assert.InDelta(t, 12000, iv.End, 1e-9)

	for i := 0; i < 30; i++ {
		require.NoError(t, c.ZoomOutAt(0.9))
	}
	assert.Equal(t, Interval{Start: 0, End: 60000}, c.Interval())
}

func TestShiftTime_ClampsAtBounds(t *testing.T) {
	c := newTestController(t, nil, nil)
	require.NoError(t, c.SetInterval(55000, 59000))

	require.NoError(t, c.ShiftTime(true, 2000))
	assert.Equal(t, Interval{Start: 56000, End: 60000}, c.Interval())

	require.NoError(t, c.ShiftTime(true, 2000))
	assert.Equal(t, Interval{Start: 56000, End: 60000}, c.Interval())

	// Default delta is a tenth of the width.
	require.NoError(t, c.ShiftTime(false, 0))
	assert.Equal(t, Interval{Start: 55600, End: 59600}, c.Interval())

	require.NoError(t, c.ShiftTime(false, 1e9))
	assert.Equal(t, Interval{Start: 0, End: 4000}, c.Interval())
}

func TestSubscribe_OrderAndDuplicates(t *testing.T) {
	c := newTestController(t, nil, nil)
	var order []string
	a := &recorder{name: "a", log: &order}
	b := &recorder{name: "b", log: &order}

	idA := c.Subscribe(a)
	idB := c.Subscribe(b)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, idA, c.Subscribe(a), "duplicate subscription should return the existing id")

	// Function listeners are not comparable and are always added.
	calls := 0
	c.Subscribe(ListenerFunc(func(Event) { calls++ }))

	require.NoError(t, c.Publish(true))
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, calls)
	require.Len(t, a.events, 1)

	want := Event{
		Kind:            EventInterval,
		Interval:        Interval{Start: 0, End: 60000},
		ForceRedraw:     true,
		SmoothingWindow: 50,
		SamplesPerPixel: 0.3,
	}
	if diff := cmp.Diff(want, a.events[0]); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}

	c.Unsubscribe(idA)
	c.Unsubscribe("no-such-id")
	require.NoError(t, c.ShiftTime(true, 0))
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 2)
}

func TestPublish_RejectsReentrancy(t *testing.T) {
	c := newTestController(t, nil, nil)
	var nestedErrs []error
	c.Subscribe(ListenerFunc(func(ev Event) {
		nestedErrs = append(nestedErrs,
			c.Publish(false),
			c.ShiftTime(true, 100),
			c.ZoomInAt(0.5),
			c.SetSmoothingWindow(10),
			c.TogglePlay(),
			c.Tick(),
		)
		// Reads stay available while publishing.
		_ = c.Interval()
	}))

	require.NoError(t, c.Publish(false))
	require.Len(t, nestedErrs, 6)
	for i, err := range nestedErrs {
		assert.ErrorIs(t, err, ErrReentrantPublish, "nested call %d", i)
	}
	assert.Equal(t, Interval{Start: 0, End: 60000}, c.Interval())

	// The controller recovers once the fan-out completes.
	assert.NoError(t, c.SetInterval(0, 5000))
}

func TestSetSmoothingWindow(t *testing.T) {
	c := newTestController(t, nil, nil)
	r := &recorder{}
	c.Subscribe(r)

	require.NoError(t, c.SetSmoothingWindow(500))
	assert.Equal(t, 500, c.SmoothingWindow())
	assert.InDelta(t, 0.1, c.SamplesPerPixel(), 1e-12)
	require.Len(t, r.events, 1)
	assert.Equal(t, EventRedraw, r.events[0].Kind)
	assert.True(t, r.events[0].ForceRedraw)

	require.NoError(t, c.SetSmoothingWindow(1))
	assert.Equal(t, 2, c.SmoothingWindow())
	assert.InDelta(t, 0.3, c.SamplesPerPixel(), 1e-12)

	require.NoError(t, c.SetSmoothingWindow(200))
	assert.InDelta(t, 0.25, c.SamplesPerPixel(), 1e-12)
}

func TestPlayback_AdvancesWithClock(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newTestController(t, nil, clock)
	require.NoError(t, c.SetInterval(0, 10000))
	r := &recorder{}
	c.Subscribe(r)

	// Ticks while paused do nothing.
	clock.Advance(time.Second)
	require.NoError(t, c.Tick())
	assert.Empty(t, r.events)

	require.NoError(t, c.TogglePlay())
	assert.True(t, c.Playing())
	clock.Advance(250 * time.Millisecond)
	require.NoError(t, c.Tick())
	assert.Equal(t, Interval{Start: 250, End: 10250}, c.Interval())

	clock.Advance(750 * time.Millisecond)
	require.NoError(t, c.Tick())
	assert.Equal(t, Interval{Start: 1000, End: 11000}, c.Interval())

	kinds := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []EventKind{EventPlayback, EventInterval, EventInterval}, kinds)
	assert.True(t, r.events[2].Playing)
}

func TestPlayback_StopsAtEnd(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := newTestController(t, nil, clock)
	require.NoError(t, c.SetInterval(45000, 55000))
	require.NoError(t, c.SetPlaying(true))

	clock.Advance(10 * time.Second)
	require.NoError(t, c.Tick())
	assert.Equal(t, Interval{Start: 50000, End: 60000}, c.Interval())
	assert.False(t, c.Playing())

	// Pressing play at the end restarts from the beginning.
	require.NoError(t, c.SetPlaying(true))
	assert.Equal(t, Interval{Start: 0, End: 10000}, c.Interval())
}

func TestPlayback_Loops(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	loop := config.PlaybackEndLoop
	cfg := &config.AnalysisConfig{PlaybackEnd: &loop}
	c := newTestController(t, cfg, clock)
	require.NoError(t, c.SetInterval(45000, 55000))
	require.NoError(t, c.SetPlaying(true))
	require.NoError(t, c.SetPlaying(true))

	clock.Advance(6 * time.Second)
	require.NoError(t, c.Tick())
	assert.Equal(t, Interval{Start: 0, End: 10000}, c.Interval())
	assert.True(t, c.Playing())
}

func TestIntervalHelpers(t *testing.T) {
	iv := Interval{Start: 10, End: 20}
	assert.Equal(t, 10.0, iv.Width())
	assert.True(t, iv.Contains(10))
	assert.False(t, iv.Contains(21))
	assert.True(t, iv.Overlaps(0, 10))
	assert.False(t, iv.Overlaps(21, 30))
	assert.Equal(t, "redraw", EventRedraw.String())
}
