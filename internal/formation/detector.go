package formation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
	"github.com/banshee-data/motion.report/internal/smoothing"
)

// ErrNoTracks is returned when Detect is given no tracks.
var ErrNoTracks = errors.New("formation: no tracks")

var logf = monitoring.Component("Formation")

// Event is one completed formation. DurationMs is at least the configured
// minimum. DriftA and DriftB are the floor-plane distances each user moved
// between entering the formation and its last confirmed step.
type Event struct {
	EndTimeMs  float64
	DurationMs float64
	UserA      int
	UserB      int
	DriftA     float64
	DriftB     float64
}

// StartTimeMs returns the time the formation was first confirmed.
func (e Event) StartTimeMs() float64 { return e.EndTimeMs - e.DurationMs }

// Config holds detector thresholds and sweep parameters.
type Config struct {
	DistanceMaxCm float64
	AngleMaxDeg   float64
	MinDurationMs float64
	TimeStepMs    float64
	Workers       int
}

// ConfigFromAnalysis builds a Config from a loaded AnalysisConfig.
func ConfigFromAnalysis(cfg *config.AnalysisConfig) Config {
	return Config{
		DistanceMaxCm: cfg.GetDistanceMaxCm(),
		AngleMaxDeg:   cfg.GetAngleMaxDeg(),
		MinDurationMs: cfg.GetMinDurationMs(),
		TimeStepMs:    cfg.GetTimeStepMs(),
		Workers:       cfg.GetDetectorWorkers(),
	}
}

// Validate checks the sweep parameters.
func (c Config) Validate() error {
	if c.TimeStepMs <= 0 {
		return fmt.Errorf("time step must be positive, got %v", c.TimeStepMs)
	}
	if c.MinDurationMs < 0 {
		return fmt.Errorf("min duration must be non-negative, got %v", c.MinDurationMs)
	}
	if c.DistanceMaxCm < 0 {
		return fmt.Errorf("max distance must be non-negative, got %v", c.DistanceMaxCm)
	}
	if c.AngleMaxDeg < 0 || c.AngleMaxDeg > 180 {
		return fmt.Errorf("max angle must be in [0, 180], got %v", c.AngleMaxDeg)
	}
	return nil
}

// Detector runs the pairwise hysteresis sweep.
type Detector struct {
	cfg    Config
	engine smoothing.Engine

	// OnEvent, when set, is called for every event as soon as it is found.
	// Calls are serialised but arrive in no particular pair order.
	OnEvent func(Event)
}

// NewDetector validates cfg and returns a Detector reading tracks through
// engine.
func NewDetector(cfg Config, engine smoothing.Engine) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("formation config: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Detector{cfg: cfg, engine: engine}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// Detect sweeps [startMs, endMs) for every unordered pair of tracks. It
// returns ctx.Err() if the context is cancelled before all pairs finish.
func (d *Detector) Detect(ctx context.Context, tracks []*motion.UserTrack, startMs, endMs float64) ([]Event, error) {
	if len(tracks) == 0 {
		return nil, ErrNoTracks
	}
	sorted := make([]*motion.UserTrack, len(tracks))
	for i, t := range tracks {
		if t == nil || t.Len() == 0 {
			return nil, fmt.Errorf("track %d: %w", i, motion.ErrEmptyTrack)
		}
		sorted[i] = t
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })

	type pair struct{ a, b *motion.UserTrack }
	var pairs []pair
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			pairs = append(pairs, pair{sorted[i], sorted[j]})
		}
	}

	started := time.Now()
	results := make([][]Event, len(pairs))
	var cbMu sync.Mutex
	emit := func(ev Event) {
		if d.OnEvent == nil {
			return
		}
		cbMu.Lock()
		defer cbMu.Unlock()
		d.OnEvent(ev)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, p := range pairs {
		g.Go(func() error {
			evs, err := d.sweepPair(gctx, p.a, p.b, startMs, endMs, emit)
			if err != nil {
				return err
			}
			results[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Event
	for _, evs := range results {
		out = append(out, evs...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UserA != out[j].UserA {
			return out[i].UserA < out[j].UserA
		}
		if out[i].UserB != out[j].UserB {
			return out[i].UserB < out[j].UserB
		}
		return out[i].EndTimeMs < out[j].EndTimeMs
	})
	logf("%d users, %d pairs, %d events in [%.0f, %.0f) ms, took %v",
		len(sorted), len(pairs), len(out), startMs, endMs, time.Since(started))
	return out, nil
}

// sweepPair walks one pair through time. The timer accumulates while the
// pair is confirmed; once it has reached the minimum duration the next
// non-confirmed step closes the formation. A formation still open when the
// range ends is not reported.
func (d *Detector) sweepPair(ctx context.Context, a, b *motion.UserTrack, startMs, endMs float64, emit func(Event)) ([]Event, error) {
	th := Thresholds{DistanceMaxCm: d.cfg.DistanceMaxCm, AngleMaxDeg: d.cfg.AngleMaxDeg}
	step := d.cfg.TimeStepMs

	var (
		events         []Event
		timer          float64
		active         bool
		entryA, entryB r2.Vec
		lastA, lastB   r2.Vec
	)
	for k := 0; ; k++ {
		t := startMs + float64(k)*step
		if t >= endMs {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		posA, orientA := d.engine.PositionAt(a, t), d.engine.OrientationAt(a, t)
		posB, orientB := d.engine.PositionAt(b, t), d.engine.OrientationAt(b, t)

		if Classify(posA, orientA, posB, orientB, th) == StrengthConfirmed {
			if timer == 0 {
				entryA, entryB = floor(posA), floor(posB)
			}
			lastA, lastB = floor(posA), floor(posB)
			if timer >= d.cfg.MinDurationMs {
				active = true
			}
			timer += step
			continue
		}

		if active {
			ev := Event{
				EndTimeMs:  t,
				DurationMs: timer,
				UserA:      a.UserID,
				UserB:      b.UserID,
				DriftA:     r2.Norm(r2.Sub(lastA, entryA)),
				DriftB:     r2.Norm(r2.Sub(lastB, entryB)),
			}
			events = append(events, ev)
			emit(ev)
		}
		active = false
		timer = 0
	}
	return events, nil
}

func floor(p r3.Vec) r2.Vec { return motion.FloorXZ(p) }
