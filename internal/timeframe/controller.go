package timeframe

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/smoothing"
	"github.com/banshee-data/motion.report/internal/timeutil"
)

// ErrReentrantPublish is returned when the controller is mutated or asked to
// publish while it is already delivering an event.
var ErrReentrantPublish = errors.New("timeframe: publish already in progress")

var logf = monitoring.Component("TimeFrame")

type subscription struct {
	id       string
	listener Listener
}

// Controller owns the visible interval and notifies listeners when it
// changes. All methods are safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	globalStart float64
	globalEnd   float64
	iv          Interval

	minWidth      float64
	zoomStep      float64
	shiftFraction float64
	playbackEnd   string
	window        int

	clock    timeutil.Clock
	playing  bool
	lastTick time.Time

	subs       []subscription
	publishing bool
}

// NewController returns a controller showing the whole of [globalStart,
// globalEnd]. A nil clock uses the wall clock.
func NewController(globalStart, globalEnd float64, cfg *config.AnalysisConfig, clock timeutil.Clock) (*Controller, error) {
	if globalEnd < globalStart {
		return nil, fmt.Errorf("invalid global bounds [%.1f, %.1f]", globalStart, globalEnd)
	}
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("timeframe config: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Controller{
		globalStart:   globalStart,
		globalEnd:     globalEnd,
		iv:            Interval{Start: globalStart, End: globalEnd},
		minWidth:      cfg.GetMinIntervalMs(),
		zoomStep:      cfg.GetZoomStep(),
		shiftFraction: cfg.GetShiftFraction(),
		playbackEnd:   cfg.GetPlaybackEnd(),
		window:        smoothing.ClampWindow(cfg.GetSmoothingWindow()),
		clock:         clock,
	}, nil
}

// Bounds returns the global range the interval is confined to.
func (c *Controller) Bounds() Interval {
	return Interval{Start: c.globalStart, End: c.globalEnd}
}

// Interval returns the current visible interval.
func (c *Controller) Interval() Interval {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iv
}

// ZoomLevel returns the global span divided by the visible width.
func (c *Controller) ZoomLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoomLevelLocked()
}

func (c *Controller) zoomLevelLocked() float64 {
	w := c.iv.Width()
	if w <= 0 {
		return 1
	}
	return (c.globalEnd - c.globalStart) / w
}

// Playing reports whether playback is running.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// HighlightTime is the cursor time shown by the video and legend: the end
// of the visible interval.
func (c *Controller) HighlightTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iv.End
}

// SmoothingWindow returns the current smoothing width in samples.
func (c *Controller) SmoothingWindow() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// SamplesPerPixel returns the line sampling density for the current
// smoothing width.
func (c *Controller) SamplesPerPixel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return samplesPerPixel(c.window)
}

func samplesPerPixel(window int) float64 {
	return math.Max(0.1, math.Min(0.3, 50/float64(window)))
}

// Subscribe registers l and returns its id. Registering a comparable
// listener that is already subscribed returns the existing id. A listener
// added during a publish first hears the next event. A nil listener is
// ignored and gets an empty id.
func (c *Controller) Subscribe(l Listener) string {
	if l == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if reflect.TypeOf(l).Comparable() {
		for _, s := range c.subs {
			if reflect.TypeOf(s.listener) == reflect.TypeOf(l) && s.listener == l {
				return s.id
			}
		}
	}
	id := uuid.NewString()
	c.subs = append(c.subs, subscription{id: id, listener: l})
	return id
}

// Unsubscribe removes the listener registered under id. Unknown ids are ignored.
func (c *Controller) Unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Publish notifies every listener of the current interval.
func (c *Controller) Publish(forceRedraw bool) error {
	c.mu.Lock()
	if c.publishing {
		c.mu.Unlock()
		return ErrReentrantPublish
	}
	return c.publishLocked(EventInterval, forceRedraw)
}

// publishLocked must be called with c.mu held and releases it. Listeners
// are called outside the lock in registration order.
func (c *Controller) publishLocked(kind EventKind, forceRedraw bool) error {
	ev := Event{
		Kind:            kind,
		Interval:        c.iv,
		ForceRedraw:     forceRedraw,
		Playing:         c.playing,
		SmoothingWindow: c.window,
		SamplesPerPixel: samplesPerPixel(c.window),
	}
	subs := append([]subscription(nil), c.subs...)
	c.publishing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.publishing = false
		c.mu.Unlock()
	}()
	for _, s := range subs {
		s.listener.OnTimeFrame(ev)
	}
	return nil
}

// lock acquires c.mu unless a publish is in flight.
func (c *Controller) lock() error {
	c.mu.Lock()
	if c.publishing {
		c.mu.Unlock()
		return ErrReentrantPublish
	}
	return nil
}

// setIntervalLocked stores [start, start+width] translated to lie within the
// global bounds. Width is capped at the global span.
func (c *Controller) setIntervalLocked(start, width float64) {
	span := c.globalEnd - c.globalStart
	if width > span {
		width = span
	}
	if width < 0 {
		width = 0
	}
	if start < c.globalStart {
		start = c.globalStart
	}
	if start+width > c.globalEnd {
		start = c.globalEnd - width
	}
	c.iv = Interval{Start: start, End: start + width}
}

// SetInterval moves the view to [start, end], clamped into the global
// bounds with the minimum width enforced.
func (c *Controller) SetInterval(start, end float64) error {
	if err := c.lock(); err != nil {
		return err
	}
	if end < start {
		start, end = end, start
	}
	width := math.Max(end-start, c.minWidth)
	c.setIntervalLocked(start, width)
	return c.publishLocked(EventInterval, false)
}

// ZoomInAt narrows the interval by the zoom step keeping the time at anchor
// (a fraction of the visible width, 0 = start, 1 = end) fixed.
func (c *Controller) ZoomInAt(anchor float64) error {
	return c.zoom(anchor, 1/c.zoomStep)
}

// ZoomOutAt widens the interval by the zoom step keeping the time at anchor
// fixed where the global bounds allow.
func (c *Controller) ZoomOutAt(anchor float64) error {
	return c.zoom(anchor, c.zoomStep)
}

func (c *Controller) zoom(anchor, factor float64) error {
	if err := c.lock(); err != nil {
		return err
	}
	anchor = math.Max(0, math.Min(1, anchor))
	width := c.iv.Width()
	at := c.iv.Start + anchor*width

	newWidth := math.Max(width*factor, c.minWidth)
	c.setIntervalLocked(at-anchor*newWidth, newWidth)
	return c.publishLocked(EventInterval, false)
}

// ShiftTime pans the interval by deltaMs, preserving its width. A
// non-positive delta pans by the configured fraction of the visible width.
func (c *Controller) ShiftTime(forward bool, deltaMs float64) error {
	if err := c.lock(); err != nil {
		return err
	}
	width := c.iv.Width()
	if deltaMs <= 0 {
		deltaMs = width * c.shiftFraction
	}
	if !forward {
		deltaMs = -deltaMs
	}
	c.setIntervalLocked(c.iv.Start+deltaMs, width)
	return c.publishLocked(EventInterval, false)
}

// SetSmoothingWindow changes the smoothing width and asks listeners to redraw.
func (c *Controller) SetSmoothingWindow(w int) error {
	if err := c.lock(); err != nil {
		return err
	}
	c.window = smoothing.ClampWindow(w)
	return c.publishLocked(EventRedraw, true)
}

// TogglePlay starts or stops playback.
func (c *Controller) TogglePlay() error {
	if err := c.lock(); err != nil {
		return err
	}
	return c.setPlayingLocked(!c.playing)
}

// SetPlaying starts or stops playback. It is a no-op when the state is
// already as requested.
func (c *Controller) SetPlaying(playing bool) error {
	if err := c.lock(); err != nil {
		return err
	}
	if c.playing == playing {
		c.mu.Unlock()
		return nil
	}
	return c.setPlayingLocked(playing)
}

func (c *Controller) setPlayingLocked(playing bool) error {
	c.playing = playing
	if playing {
		c.lastTick = c.clock.Now()
		// Restart from the beginning when play is pressed at the end.
		if c.iv.End >= c.globalEnd {
			c.setIntervalLocked(c.globalStart, c.iv.Width())
		}
	}
	logf("playback playing=%v interval=[%.0f, %.0f]", playing, c.iv.Start, c.iv.End)
	return c.publishLocked(EventPlayback, false)
}

// Tick advances the interval by the wall-clock time elapsed since the
// previous tick while playing. It is called once per frame.
func (c *Controller) Tick() error {
	if err := c.lock(); err != nil {
		return err
	}
	if !c.playing {
		c.mu.Unlock()
		return nil
	}
	now := c.clock.Now()
	elapsed := float64(now.Sub(c.lastTick)) / float64(time.Millisecond)
	c.lastTick = now
	if elapsed <= 0 {
		c.mu.Unlock()
		return nil
	}

	width := c.iv.Width()
	if c.iv.End+elapsed < c.globalEnd {
		c.setIntervalLocked(c.iv.Start+elapsed, width)
		return c.publishLocked(EventInterval, false)
	}

	switch c.playbackEnd {
	case config.PlaybackEndLoop:
		c.setIntervalLocked(c.globalStart, width)
		logf("playback looped to start")
		return c.publishLocked(EventInterval, false)
	default:
		c.setIntervalLocked(c.globalEnd-width, width)
		c.playing = false
		logf("playback reached end of track")
		return c.publishLocked(EventPlayback, false)
	}
}
