package linevis

import (
	"sync"

	"github.com/banshee-data/motion.report/internal/formation"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
	"github.com/banshee-data/motion.report/internal/smoothing"
	"github.com/banshee-data/motion.report/internal/timeframe"
)

var logf = monitoring.Component("LineVis")

// Renderer is a timeframe.Listener that keeps a Scene in step with the
// controller.
type Renderer struct {
	session *motion.Session
	events  []formation.Event
	layout  Layout

	mu     sync.Mutex
	hidden map[int]bool
	dirty  bool
	scene  Scene
	built  bool
}

// NewRenderer returns a Renderer for session. events may be nil.
func NewRenderer(session *motion.Session, events []formation.Event, layout Layout) *Renderer {
	return &Renderer{
		session: session,
		events:  append([]formation.Event(nil), events...),
		layout:  layout,
		hidden:  make(map[int]bool),
	}
}

// SetUserVisible shows or hides a user's stroke and formations. The change
// takes effect on the next event.
func (r *Renderer) SetUserVisible(userID int, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hidden[userID] == !visible {
		return
	}
	if visible {
		delete(r.hidden, userID)
	} else {
		r.hidden[userID] = true
	}
	r.dirty = true
}

// UserVisible reports whether userID is drawn.
func (r *Renderer) UserVisible(userID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.hidden[userID]
}

// Scene returns the most recently built scene.
func (r *Renderer) Scene() Scene {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scene
}

// OnTimeFrame rebuilds the scene unless the event leaves it unchanged.
func (r *Renderer) OnTimeFrame(ev timeframe.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built && !r.dirty && !ev.ForceRedraw &&
		ev.Interval == r.scene.Interval && ev.SmoothingWindow == r.scene.Window {
		return
	}

	engine := smoothing.New(ev.SmoothingWindow)
	next := Scene{
		Interval:   ev.Interval,
		Window:     engine.Window(),
		Generation: r.scene.Generation + 1,
	}
	for _, u := range r.session.Users {
		if r.hidden[u.UserID] {
			continue
		}
		stroke, err := r.layout.BuildStroke(u, engine, ev.Interval, ev.SamplesPerPixel)
		if err != nil {
			logf("user %d stroke: %v", u.UserID, err)
			continue
		}
		next.Strokes = append(next.Strokes, stroke)
	}
	for _, fe := range r.events {
		if r.hidden[fe.UserA] || r.hidden[fe.UserB] {
			continue
		}
		a, b := r.session.User(fe.UserA), r.session.User(fe.UserB)
		if a == nil || b == nil {
			continue
		}
		if band, ok := r.layout.BuildBand(fe, a, b, engine, ev.Interval); ok {
			next.Bands = append(next.Bands, band)
		}
	}
	r.scene = next
	r.built = true
	r.dirty = false
}
