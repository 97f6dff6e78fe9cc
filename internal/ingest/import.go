package ingest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
)

var logf = monitoring.Component("Import")

// Store receives imported session data. *db.DB implements it.
type Store interface {
	SetSessionStart(ctx context.Context, start time.Time) error
	InsertHeadSamples(ctx context.Context, userID int, samples []motion.Sample) error
	InsertTouches(ctx context.Context, userID int, touches []motion.Touch) error
}

// Summary reports what an import wrote.
type Summary struct {
	Start        time.Time
	DurationMs   float64
	HeadRows     int
	Samples      map[int]int // per user, after resampling
	Touches      map[int]int
	SkippedTouch int // touches before the session start
}

// Import reads a tracker log and an optional touch log recorded on date,
// resamples head poses to stepMs and writes everything to store. Times are
// stored relative to the earliest tracker row.
func Import(ctx context.Context, store Store, head io.Reader, touch io.Reader, date time.Time, stepMs float64) (*Summary, error) {
	records, err := ReadHeadCSV(head, date)
	if err != nil {
		return nil, fmt.Errorf("tracker log: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("tracker log: %w", motion.ErrEmptyTrack)
	}

	start := records[0].Time
	byUser := make(map[int][]HeadRecord)
	for _, r := range records {
		if r.Time.Before(start) {
			start = r.Time
		}
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}
	users := make([]int, 0, len(byUser))
	for id := range byUser {
		users = append(users, id)
	}
	sort.Ints(users)

	sum := &Summary{
		Start:    start,
		HeadRows: len(records),
		Samples:  make(map[int]int),
		Touches:  make(map[int]int),
	}
	if err := store.SetSessionStart(ctx, start); err != nil {
		return nil, err
	}
	for _, id := range users {
		samples := Resample(byUser[id], start, stepMs)
		if err := store.InsertHeadSamples(ctx, id, samples); err != nil {
			return nil, err
		}
		sum.Samples[id] = len(samples)
		if n := len(samples); n > 0 && samples[n-1].TimestampMs > sum.DurationMs {
			sum.DurationMs = samples[n-1].TimestampMs
		}
	}

	if touch != nil {
		touches, err := ReadTouchCSV(touch, date)
		if err != nil {
			return nil, fmt.Errorf("touch log: %w", err)
		}
		perUser := make(map[int][]motion.Touch)
		for _, tr := range touches {
			ms := msSince(start, tr.Time)
			if ms < 0 {
				sum.SkippedTouch++
				continue
			}
			perUser[tr.UserID] = append(perUser[tr.UserID], motion.Touch{
				TimestampMs: ms,
				Position:    tr.Position,
				DurationMs:  tr.DurationMs,
			})
		}
		for id, ts := range perUser {
			if err := store.InsertTouches(ctx, id, ts); err != nil {
				return nil, err
			}
			sum.Touches[id] = len(ts)
		}
	}

	logf("%d tracker rows, %d users, %.1f s from %s", sum.HeadRows, len(users), sum.DurationMs/1000, start.Format(time.RFC3339))
	return sum, nil
}
