package timeframe

// Interval is a closed time range in milliseconds since session start.
type Interval struct {
	Start float64
	End   float64
}

// Width returns End - Start.
func (iv Interval) Width() float64 { return iv.End - iv.Start }

// Contains reports whether t lies inside the interval.
func (iv Interval) Contains(t float64) bool { return t >= iv.Start && t <= iv.End }

// Overlaps reports whether [start, end] intersects the interval.
func (iv Interval) Overlaps(start, end float64) bool { return start <= iv.End && end >= iv.Start }

// EventKind tags what changed.
type EventKind int

const (
	EventInterval EventKind = iota // interval moved or resized
	EventRedraw                    // rendering parameters changed, interval unchanged
	EventPlayback                  // playback started or stopped
)

func (k EventKind) String() string {
	switch k {
	case EventInterval:
		return "interval"
	case EventRedraw:
		return "redraw"
	case EventPlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// Event is delivered to every listener on Publish.
type Event struct {
	Kind            EventKind
	Interval        Interval
	ForceRedraw     bool
	Playing         bool
	SmoothingWindow int
	SamplesPerPixel float64
}

// Listener receives controller events.
type Listener interface {
	OnTimeFrame(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

// OnTimeFrame calls f(ev).
func (f ListenerFunc) OnTimeFrame(ev Event) { f(ev) }
