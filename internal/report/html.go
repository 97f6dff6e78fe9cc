package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/motion.report/internal/formation"
	"github.com/banshee-data/motion.report/internal/stats"
	"github.com/banshee-data/motion.report/internal/timeframe"
)

// Summary is the input to the HTML report.
type Summary struct {
	Title    string
	Interval timeframe.Interval
	Users    []stats.UserStats
	Events   []formation.Event
}

func (s Summary) subtitle() string {
	return fmt.Sprintf("%.1f s to %.1f s", s.Interval.Start/1000, s.Interval.End/1000)
}

func (s Summary) userBar(title, unit string, value func(stats.UserStats) float64) *charts.Bar {
	x := make([]string, len(s.Users))
	y := make([]opts.BarData, len(s.Users))
	for i, u := range s.Users {
		x[i] = fmt.Sprintf("user %d", u.UserID)
		y[i] = opts.BarData{Value: round2(value(u))}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: s.subtitle()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit}),
	)
	bar.SetXAxis(x).
		AddSeries(unit, y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// PairMinutes totals formation time per user pair in minutes, keyed "a-b".
func PairMinutes(events []formation.Event) ([]string, []float64) {
	totals := make(map[string]float64)
	var keys []string
	for _, ev := range events {
		k := fmt.Sprintf("%d-%d", ev.UserA, ev.UserB)
		if _, ok := totals[k]; !ok {
			keys = append(keys, k)
		}
		totals[k] += ev.DurationMs / 60000
	}
	sort.Strings(keys)
	vals := make([]float64, len(keys))
	for i, k := range keys {
		vals[i] = totals[k]
	}
	return keys, vals
}

func (s Summary) formationBar() *charts.Bar {
	keys, vals := PairMinutes(s.Events)
	y := make([]opts.BarData, len(vals))
	for i, v := range vals {
		y[i] = opts.BarData{Value: round2(v)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "F-formation time per pair", Subtitle: fmt.Sprintf("%d events", len(s.Events))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "min"}),
	)
	bar.SetXAxis(keys).
		AddSeries("minutes", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// WriteHTML renders the summary as a single echarts page.
func WriteHTML(w io.Writer, s Summary) error {
	title := s.Title
	if title == "" {
		title = "Motion report"
	}

	page := components.NewPage()
	page.SetPageTitle(title)
	page.AddCharts(
		s.userBar("Distance travelled", "m/min", func(u stats.UserStats) float64 { return u.MetresPerMinute }),
		s.userBar("Mean distance from wall", "cm", func(u stats.UserStats) float64 { return u.MeanWallDistCm }),
		s.userBar("Touches", "touches/min", func(u stats.UserStats) float64 { return u.TouchesPerMinute }),
		s.formationBar(),
	)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render report page: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write report page: %w", err)
	}
	return nil
}
