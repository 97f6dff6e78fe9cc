package linevis

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/motion.report/internal/formation"
	"github.com/banshee-data/motion.report/internal/geometry"
	"github.com/banshee-data/motion.report/internal/motion"
	"github.com/banshee-data/motion.report/internal/smoothing"
	"github.com/banshee-data/motion.report/internal/timeframe"
)

// bandStepFactor spaces formation band vertices this many time steps apart.
const bandStepFactor = 32

// indicatorY is the pixel row of the formation indicator segments.
const indicatorY = 10

// UserStroke is one user's variable-width line.
type UserStroke struct {
	UserID    int
	Centre    []orb.Point
	Widths    []float64
	Opacities []float64 // per vertex, (1-d)^2
	Opacity   float64   // mean of Opacities
	Ring      orb.Ring
}

// FormationBand highlights one formation: two half-bands, one per user,
// meeting at the midline, plus an indicator segment along the top.
type FormationBand struct {
	Event     formation.Event
	SideA     orb.Ring
	SideB     orb.Ring
	Indicator orb.LineString
}

// Scene is everything drawn for one interval.
type Scene struct {
	Interval   timeframe.Interval
	Window     int
	Strokes    []UserStroke
	Bands      []FormationBand
	Generation int // incremented on every rebuild
}

// Layout fixes the canvas size and the value ranges mapped onto it.
type Layout struct {
	WidthPx        float64
	HeightPx       float64
	MaxStrokeWidth float64
	TimeStepMs     float64
	XRange         [2]float64 // cm along the wall mapped to [0, HeightPx]
	ZRange         [2]float64 // cm from the wall mapped to d in [0, 1]
}

// LayoutForSession sizes the value ranges to the session's recorded
// positions.
func LayoutForSession(s *motion.Session, widthPx, heightPx, maxStrokeWidth, timeStepMs float64) Layout {
	lo, hi := s.PositionBounds()
	return Layout{
		WidthPx:        widthPx,
		HeightPx:       heightPx,
		MaxStrokeWidth: maxStrokeWidth,
		TimeStepMs:     timeStepMs,
		XRange:         [2]float64{lo.X, hi.X},
		ZRange:         [2]float64{lo.Z, hi.Z},
	}
}

func normalise(v float64, r [2]float64) float64 {
	span := r[1] - r[0]
	if span == 0 {
		return 0
	}
	return (v - r[0]) / span
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

// timeToPx maps t inside iv onto [0, WidthPx].
func (l Layout) timeToPx(t float64, iv timeframe.Interval) float64 {
	w := iv.Width()
	if w == 0 {
		return 0
	}
	return (t - iv.Start) / w * l.WidthPx
}

// BuildStroke samples one user's smoothed track across iv.
func (l Layout) BuildStroke(track *motion.UserTrack, engine smoothing.Engine, iv timeframe.Interval, samplesPerPixel float64) (UserStroke, error) {
	n := int(l.WidthPx * samplesPerPixel)
	if n < 2 {
		n = 2
	}
	s := UserStroke{
		UserID:    track.UserID,
		Centre:    make([]orb.Point, n),
		Widths:    make([]float64, n),
		Opacities: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)
		pos := engine.PositionAt(track, iv.Start+frac*iv.Width())
		d := clamp01(normalise(pos.Z, l.ZRange))

		s.Centre[i] = orb.Point{frac * l.WidthPx, normalise(pos.X, l.XRange) * l.HeightPx}
		s.Widths[i] = 1 + d*l.MaxStrokeWidth
		s.Opacities[i] = (1 - d) * (1 - d)
	}
	s.Opacity = stat.Mean(s.Opacities, nil)

	ring, err := geometry.Stroke(s.Centre, s.Widths)
	if err != nil {
		return UserStroke{}, err
	}
	s.Ring = ring
	return s, nil
}

// bandThickness is half the band width for a user at time t.
func (l Layout) bandThickness(track *motion.UserTrack, engine smoothing.Engine, t float64) float64 {
	d := normalise(engine.PositionAt(track, t).Z, l.ZRange)
	return (2 + d*d*d*l.HeightPx/12) / 2
}

// BuildBand renders the part of ev visible in iv. ok is false when the
// formation lies outside the interval.
func (l Layout) BuildBand(ev formation.Event, a, b *motion.UserTrack, engine smoothing.Engine, iv timeframe.Interval) (FormationBand, bool) {
	start := math.Max(ev.StartTimeMs(), iv.Start)
	end := math.Min(ev.EndTimeMs, iv.End)
	if start > end {
		return FormationBand{}, false
	}

	var sideA, sideB, middle []orb.Point
	add := func(t float64) {
		x := l.timeToPx(t, iv)
		yA := normalise(engine.PositionAt(a, t).X, l.XRange) * l.HeightPx
		yB := normalise(engine.PositionAt(b, t).X, l.XRange) * l.HeightPx
		thA := l.bandThickness(a, engine, t)
		thB := l.bandThickness(b, engine, t)
		switch {
		case yA <= yB:
			yA += thA
			yB -= thB
		case math.Abs(yB-yA) <= thA+thB:
		default:
			yA -= thA
			yB += thB
		}
		sideA = append(sideA, orb.Point{x, yA})
		sideB = append(sideB, orb.Point{x, yB})
		middle = append(middle, orb.Point{x, yA + (yB-yA)/2})
	}

	step := l.TimeStepMs * bandStepFactor
	if step <= 0 {
		step = end - start
	}
	for k := 0; ; k++ {
		t := start + float64(k)*step
		if t > end || (k > 0 && step == 0) {
			break
		}
		add(t)
	}
	// close the band exactly at the interval edge
	add(end)

	return FormationBand{
		Event:     ev,
		SideA:     closeWithMiddle(sideA, middle),
		SideB:     closeWithMiddle(sideB, middle),
		Indicator: orb.LineString{{l.timeToPx(start, iv), indicatorY}, {l.timeToPx(end, iv), indicatorY}},
	}, true
}

func closeWithMiddle(side, middle []orb.Point) orb.Ring {
	ring := make(orb.Ring, 0, len(side)+len(middle)+1)
	ring = append(ring, side...)
	for i := len(middle) - 1; i >= 0; i-- {
		ring = append(ring, middle[i])
	}
	return append(ring, ring[0])
}
