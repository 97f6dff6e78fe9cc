package report

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/motion.report/internal/formation"
	"github.com/banshee-data/motion.report/internal/linevis"
	"github.com/banshee-data/motion.report/internal/timeframe"
)

// Default image size used by the CLI.
const (
	DefaultWidth  = 14 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

var bandColor = color.RGBA{R: 255, G: 200, B: 0, A: 96}

// userColors assigns one palette entry per user, in ascending user ID order.
func userColors(ids []int) map[int]color.Color {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	palette := generateColors(len(sorted))
	out := make(map[int]color.Color, len(sorted))
	for i, id := range sorted {
		out[id] = palette[i]
	}
	return out
}

func ringXYs(r orb.Ring) plotter.XYs {
	pts := make(plotter.XYs, len(r))
	for i, p := range r {
		pts[i].X = p[0]
		pts[i].Y = p[1]
	}
	return pts
}

func lineXYs(ls orb.LineString) plotter.XYs {
	pts := make(plotter.XYs, len(ls))
	for i, p := range ls {
		pts[i].X = p[0]
		pts[i].Y = p[1]
	}
	return pts
}

// ScenePlot draws every stroke polygon of the scene, formation bands
// underneath, in the layout's pixel space.
func ScenePlot(scene linevis.Scene, layout linevis.Layout) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Users %.0f-%.0f ms (window %d)", scene.Interval.Start, scene.Interval.End, scene.Window)
	p.X.Label.Text = "Time (px)"
	p.Y.Label.Text = "Position along wall (px)"
	p.Add(plotter.NewGrid())

	for _, band := range scene.Bands {
		for _, side := range []orb.Ring{band.SideA, band.SideB} {
			if len(side) < 3 {
				continue
			}
			poly, err := plotter.NewPolygon(ringXYs(side))
			if err != nil {
				return nil, fmt.Errorf("band %d-%d polygon: %w", band.Event.UserA, band.Event.UserB, err)
			}
			poly.Color = bandColor
			poly.LineStyle.Width = 0
			p.Add(poly)
		}
		if len(band.Indicator) >= 2 {
			ind, err := plotter.NewLine(lineXYs(band.Indicator))
			if err != nil {
				return nil, fmt.Errorf("band %d-%d indicator: %w", band.Event.UserA, band.Event.UserB, err)
			}
			ind.Color = color.RGBA{R: 200, G: 120, B: 0, A: 255}
			ind.Width = vg.Points(3)
			p.Add(ind)
		}
	}

	ids := make([]int, len(scene.Strokes))
	for i, s := range scene.Strokes {
		ids[i] = s.UserID
	}
	colors := userColors(ids)

	for _, s := range scene.Strokes {
		if len(s.Ring) < 3 {
			continue
		}
		poly, err := plotter.NewPolygon(ringXYs(s.Ring))
		if err != nil {
			return nil, fmt.Errorf("user %d polygon: %w", s.UserID, err)
		}
		poly.Color = withAlpha(colors[s.UserID], 0.25+0.75*s.Opacity)
		poly.LineStyle.Color = colors[s.UserID]
		poly.LineStyle.Width = vg.Points(0.5)
		p.Add(poly)
		p.Legend.Add(fmt.Sprintf("user %d", s.UserID), poly)
	}

	// Fixed after Add, which widens the axes to the data range.
	p.X.Min, p.X.Max = 0, layout.WidthPx
	p.Y.Min, p.Y.Max = 0, layout.HeightPx

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

type pairKey struct{ a, b int }

// TimelinePlot draws one row per user pair with a thick segment for each
// formation event. Events outside iv are clipped; a zero-width iv shows
// everything.
func TimelinePlot(events []formation.Event, iv timeframe.Interval) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "F-formations"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Pair"

	var pairs []pairKey
	seen := make(map[pairKey]bool)
	for _, ev := range events {
		k := pairKey{ev.UserA, ev.UserB}
		if !seen[k] {
			seen[k] = true
			pairs = append(pairs, k)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	rows := make(map[pairKey]int, len(pairs))
	ticks := make(plot.ConstantTicks, len(pairs))
	for i, k := range pairs {
		rows[k] = i
		ticks[i] = plot.Tick{Value: float64(i), Label: fmt.Sprintf("%d-%d", k.a, k.b)}
	}
	p.Y.Tick.Marker = ticks

	clip := iv.Width() > 0

	colors := generateColors(len(pairs))
	for _, ev := range events {
		start, end := ev.StartTimeMs(), ev.EndTimeMs
		if clip {
			if end < iv.Start || start > iv.End {
				continue
			}
			start = max(start, iv.Start)
			end = min(end, iv.End)
		}
		row := rows[pairKey{ev.UserA, ev.UserB}]
		seg, err := plotter.NewLine(plotter.XYs{
			{X: start / 1000, Y: float64(row)},
			{X: end / 1000, Y: float64(row)},
		})
		if err != nil {
			return nil, fmt.Errorf("event %d-%d at %.0f: %w", ev.UserA, ev.UserB, ev.EndTimeMs, err)
		}
		seg.Color = colors[row]
		seg.Width = vg.Points(8)
		p.Add(seg)
	}

	p.Y.Min, p.Y.Max = -1, float64(len(pairs))
	if clip {
		p.X.Min, p.X.Max = iv.Start/1000, iv.End/1000
	}
	return p, nil
}

// WritePNG encodes p as a PNG of the given size to w.
func WritePNG(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("create png canvas: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
