package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/db"
	"github.com/banshee-data/motion.report/internal/formation"
	"github.com/banshee-data/motion.report/internal/ingest"
	"github.com/banshee-data/motion.report/internal/linevis"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
	"github.com/banshee-data/motion.report/internal/report"
	"github.com/banshee-data/motion.report/internal/smoothing"
	"github.com/banshee-data/motion.report/internal/stats"
	"github.com/banshee-data/motion.report/internal/timeframe"
	"github.com/banshee-data/motion.report/internal/timeutil"
	"github.com/banshee-data/motion.report/internal/units"
)

var logf = monitoring.Component("CLI")

// Canvas size for rendered scenes, matching the wall display.
const (
	canvasWidthPx  = 1600
	canvasHeightPx = 400
)

func loadConfig(path string) (*config.AnalysisConfig, error) {
	if path == "" {
		return config.EmptyAnalysisConfig(), nil
	}
	return config.LoadAnalysisConfig(path)
}

// parseIntList parses a comma-separated list of ints
func parseIntList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// resolveRange fills in a missing end with the session duration and checks
// the result lies within the session.
func resolveRange(s *motion.Session, start, end float64) (float64, float64, error) {
	if end <= 0 {
		end = s.DurationMs
	}
	if start < 0 || end > s.DurationMs || end <= start {
		return 0, 0, fmt.Errorf("range [%.0f, %.0f] outside session [0, %.0f]", start, end, s.DurationMs)
	}
	return start, end, nil
}

func openSession(ctx context.Context, dbPath string) (*db.DB, *motion.Session, error) {
	database, err := db.NewDB(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	session, err := database.LoadSession(ctx)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, session, nil
}

func runMigrate(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "Session database")
	fs.Usage = func() { db.PrintMigrateHelp(fs.Output()) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, w)
}

func runImport(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "Session database")
	headPath := fs.String("head", "", "Tracker CSV log (required)")
	touchPath := fs.String("touch", "", "Touch CSV log")
	dateStr := fs.String("date", "", "Recording date YYYY-MM-DD (required)")
	tz := fs.String("tz", "", "Timezone the logs were recorded in (default: local)")
	configPath := fs.String("config", "", "Analysis configuration JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *headPath == "" || *dateStr == "" {
		fs.Usage()
		return errors.New("--head and --date are required")
	}
	loc, err := units.LoadTimezone(*tz)
	if err != nil {
		return fmt.Errorf("invalid --tz: %w", err)
	}
	date, err := time.ParseInLocation("2006-01-02", *dateStr, loc)
	if err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	head, err := os.Open(*headPath)
	if err != nil {
		return err
	}
	defer head.Close()

	var touch io.Reader
	if *touchPath != "" {
		f, err := os.Open(*touchPath)
		if err != nil {
			return err
		}
		defer f.Close()
		touch = f
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	sum, err := ingest.Import(ctx, database, head, touch, date, cfg.GetTimeStepMs())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Imported %d tracker rows for %d users (%.1f s from %s)\n",
		sum.HeadRows, len(sum.Samples), sum.DurationMs/1000, sum.Start.Format(time.RFC3339))
	if sum.SkippedTouch > 0 {
		fmt.Fprintf(w, "Skipped %d touches before the session start\n", sum.SkippedTouch)
	}
	return nil
}

func runAnalyse(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("analyse", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "Session database")
	configPath := fs.String("config", "", "Analysis configuration JSON")
	start := fs.Float64("start", 0, "Range start (ms from session start)")
	end := fs.Float64("end", 0, "Range end (ms, default: end of session)")
	outDir := fs.String("out", "", "Directory for PNG and HTML reports (optional)")
	hide := fs.String("hide", "", "Comma-separated user IDs to leave out of the scene image")
	noRecord := fs.Bool("no-record", false, "Do not store the run in the database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	hidden, err := parseIntList(*hide)
	if err != nil {
		return fmt.Errorf("invalid --hide: %w", err)
	}

	database, session, err := openSession(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	startMs, endMs, err := resolveRange(session, *start, *end)
	if err != nil {
		return err
	}

	engine := smoothing.FromConfig(cfg)
	detector, err := formation.NewDetector(formation.ConfigFromAnalysis(cfg), engine)
	if err != nil {
		return err
	}
	detector.OnEvent = func(ev formation.Event) {
		logf("users %d and %d in formation for %.1f s ending at %.1f s",
			ev.UserA, ev.UserB, ev.DurationMs/1000, ev.EndTimeMs/1000)
	}
	events, err := detector.Detect(ctx, session.Users, startMs, endMs)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%d F-formations in [%.1f s, %.1f s]\n", len(events), startMs/1000, endMs/1000)
	printEvents(w, events)

	if !*noRecord {
		runID, err := database.RecordAnalysisRun(ctx, cfg, startMs, endMs, events)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Recorded analysis run %s\n", runID)
	}

	if *outDir == "" {
		return nil
	}
	return writeReports(session, cfg, events, timeframe.Interval{Start: startMs, End: endMs}, hidden, *outDir, w)
}

func writeReports(session *motion.Session, cfg *config.AnalysisConfig, events []formation.Event, iv timeframe.Interval, hidden []int, outDir string, w io.Writer) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ctl, err := timeframe.NewController(0, session.DurationMs, cfg, timeutil.RealClock{})
	if err != nil {
		return err
	}
	layout := linevis.LayoutForSession(session, canvasWidthPx, canvasHeightPx, cfg.GetMaxStrokeWidthPx(), cfg.GetTimeStepMs())
	renderer := linevis.NewRenderer(session, events, layout)
	for _, id := range hidden {
		renderer.SetUserVisible(id, false)
	}
	ctl.Subscribe(renderer)
	if err := ctl.SetInterval(iv.Start, iv.End); err != nil {
		return err
	}

	scenePlot, err := report.ScenePlot(renderer.Scene(), layout)
	if err != nil {
		return err
	}
	scenePath := filepath.Join(outDir, "scene.png")
	if err := scenePlot.Save(report.DefaultWidth, report.DefaultHeight, scenePath); err != nil {
		return fmt.Errorf("save scene plot: %w", err)
	}

	timelinePlot, err := report.TimelinePlot(events, iv)
	if err != nil {
		return err
	}
	timelinePath := filepath.Join(outDir, "formations.png")
	if err := timelinePlot.Save(report.DefaultWidth, report.DefaultHeight, timelinePath); err != nil {
		return fmt.Errorf("save timeline plot: %w", err)
	}

	userStats, err := stats.Interval(session, iv.Start, iv.End)
	if err != nil {
		return err
	}
	htmlPath := filepath.Join(outDir, "report.html")
	f, err := os.Create(htmlPath)
	if err != nil {
		return err
	}
	err = report.WriteHTML(f, report.Summary{
		Title:    "Session " + session.StartTime.Format("2006-01-02 15:04"),
		Interval: iv,
		Users:    userStats,
		Events:   events,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Wrote %s, %s and %s\n", scenePath, timelinePath, htmlPath)
	return nil
}

func printEvents(w io.Writer, events []formation.Event) {
	if len(events) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERS\tSTART (s)\tEND (s)\tDURATION (s)")
	for _, ev := range events {
		fmt.Fprintf(tw, "%d-%d\t%.1f\t%.1f\t%.1f\n",
			ev.UserA, ev.UserB, ev.StartTimeMs()/1000, ev.EndTimeMs/1000, ev.DurationMs/1000)
	}
	tw.Flush()
}

func runStats(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "Session database")
	start := fs.Float64("start", 0, "Range start (ms from session start)")
	end := fs.Float64("end", 0, "Range end (ms, default: end of session)")
	speedUnits := fs.String("units", units.MPM, "Speed units: "+units.GetValidUnitsString())
	tz := fs.String("tz", "UTC", "Timezone for displayed times")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !units.IsValid(*speedUnits) {
		return fmt.Errorf("invalid --units %q, want one of %s", *speedUnits, units.GetValidUnitsString())
	}

	database, session, err := openSession(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	startMs, endMs, err := resolveRange(session, *start, *end)
	if err != nil {
		return err
	}
	userStats, err := stats.Interval(session, startMs, endMs)
	if err != nil {
		return err
	}
	ranges, err := stats.AxisRanges(session)
	if err != nil {
		return err
	}

	started, err := units.ConvertTime(session.StartTime, *tz)
	if err != nil {
		return fmt.Errorf("invalid --tz: %w", err)
	}

	fmt.Fprintf(w, "Session %s, %.1f s, interval [%.1f s, %.1f s]\n",
		started.Format(time.RFC3339), session.DurationMs/1000, startMs/1000, endMs/1000)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "USER\tSPEED (%s)\tWALL DIST (CM)\tTOUCHES\tTOUCHES/MIN\n", units.Label(*speedUnits))
	for _, u := range userStats {
		fmt.Fprintf(tw, "%d\t%.2f\t%.1f\t%d\t%.2f\n",
			u.UserID, units.ConvertSpeed(u.MetresPerMinute, *speedUnits), u.MeanWallDistCm, u.TouchCount, u.TouchesPerMinute)
	}
	tw.Flush()
	fmt.Fprintf(w, "Axis ranges (cm): x [%.0f, %.0f] y [%.0f, %.0f] z [%.0f, %.0f]\n",
		ranges[0].Min, ranges[0].Max, ranges[1].Min, ranges[1].Max, ranges[2].Min, ranges[2].Max)
	return nil
}

func runRuns(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "Session database")
	show := fs.String("show", "", "Print the events of a run (\"latest\" for the most recent)")
	del := fs.String("delete", "", "Delete a run and its events")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch {
	case *del != "":
		if err := database.DeleteAnalysisRun(ctx, *del); err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted analysis run %s\n", *del)
		return nil

	case *show != "":
		var run *db.AnalysisRun
		if *show == "latest" {
			run, err = database.LatestAnalysisRun(ctx)
		} else {
			run, err = database.AnalysisRun(ctx, *show)
		}
		if err != nil {
			return err
		}
		events, err := database.FormationEvents(ctx, run.RunID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Run %s: %d events in [%.1f s, %.1f s]\n",
			run.RunID, len(events), run.RangeStartMs/1000, run.RangeEndMs/1000)
		printEvents(w, events)
		return nil
	}

	runs, err := database.AnalysisRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No analysis runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tRANGE (s)\tEVENTS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%.1f-%.1f\t%d\n",
			r.RunID, r.CreatedAt.Format(time.RFC3339), r.RangeStartMs/1000, r.RangeEndMs/1000, r.EventCount)
	}
	return tw.Flush()
}

// runPlay renders playback offline: a manual clock is advanced by one frame
// period before every Tick, so the exported frames are independent of how
// long rendering takes.
func runPlay(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "Session database")
	configPath := fs.String("config", "", "Analysis configuration JSON")
	outDir := fs.String("out", "frames", "Directory for frame images")
	frames := fs.Int("frames", 50, "Maximum number of frames")
	fps := fs.Float64("fps", 10, "Frames per second of session time")
	widthMs := fs.Float64("width", 30000, "Visible interval width (ms)")
	start := fs.Float64("start", 0, "Playback start (ms from session start)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *frames < 1 || *fps <= 0 {
		return errors.New("--frames and --fps must be positive")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	database, session, err := openSession(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	var events []formation.Event
	if run, err := database.LatestAnalysisRun(ctx); err == nil {
		if events, err = database.FormationEvents(ctx, run.RunID); err != nil {
			return err
		}
	} else if !errors.Is(err, db.ErrRunNotFound) {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	clock := timeutil.NewMockClock(time.Now())
	ctl, err := timeframe.NewController(0, session.DurationMs, cfg, clock)
	if err != nil {
		return err
	}
	layout := linevis.LayoutForSession(session, canvasWidthPx, canvasHeightPx, cfg.GetMaxStrokeWidthPx(), cfg.GetTimeStepMs())
	renderer := linevis.NewRenderer(session, events, layout)
	ctl.Subscribe(renderer)

	if err := ctl.SetInterval(*start, *start+*widthMs); err != nil {
		return err
	}
	if err := ctl.SetPlaying(true); err != nil {
		return err
	}

	period := time.Duration(float64(time.Second) / *fps)
	written := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := report.ScenePlot(renderer.Scene(), layout)
		if err != nil {
			return err
		}
		path := filepath.Join(*outDir, fmt.Sprintf("frame_%04d.png", written))
		if err := p.Save(report.DefaultWidth, report.DefaultHeight, path); err != nil {
			return fmt.Errorf("save frame: %w", err)
		}
		written++

		if written == *frames || !ctl.Playing() {
			break
		}
		clock.Advance(period)
		if err := ctl.Tick(); err != nil {
			return err
		}
	}
	iv := ctl.Interval()
	fmt.Fprintf(w, "Wrote %d frames to %s, last interval [%.1f s, %.1f s]\n", written, *outDir, iv.Start/1000, iv.End/1000)
	return nil
}
