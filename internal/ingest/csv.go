// Package ingest imports tracker and touch logs exported as CSV into the
// session database, resampling head poses onto a fixed time step.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// csvTimeLayout is the wall-clock layout of the first column. Fractional
// seconds are accepted after the seconds field.
const csvTimeLayout = "2006-01-02 15:04:05"

// HeadRecord is one tracker row in database coordinates: cm, x to the right
// along the wall, y up, z away from the wall. Orientation is (yaw, pitch,
// roll) in degrees.
type HeadRecord struct {
	UserID      int
	Time        time.Time
	Position    r3.Vec
	Orientation r3.Vec
}

// TouchRecord is one touch row.
type TouchRecord struct {
	UserID     int
	Time       time.Time
	Position   r2.Vec
	DurationMs float64
}

// ParseCSVTime combines a session date with an "HH:MM:SS.mmm" column value.
func ParseCSVTime(date time.Time, clock string) (time.Time, error) {
	day := date.Format("2006-01-02")
	t, err := time.ParseInLocation(csvTimeLayout, day+" "+strings.TrimSpace(clock), date.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return t, nil
}

// parseTuple reads "(a, b, c)" into n floats.
func parseTuple(s string, n int) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values in %q, got %d", n, s, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

// trackerToDB converts a tracker position in metres, with x pointing left
// and z into the wall, to database centimetres.
func trackerToDB(p []float64) r3.Vec {
	return r3.Vec{X: -p[0] * 100, Y: p[1] * 100, Z: -p[2] * 100}
}

// readRecords reads all rows, skipping a header row whose first field is
// not a time.
func readRecords(r io.Reader, fields int, date time.Time) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = fields
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) > 0 {
		if _, err := ParseCSVTime(date, records[0][0]); err != nil {
			records = records[1:]
		}
	}
	return records, nil
}

// ReadHeadCSV parses tracker rows of the form
//
//	time,userid,"(x, y, z)","(yaw, pitch, roll)"
//
// with positions in metres.
func ReadHeadCSV(r io.Reader, date time.Time) ([]HeadRecord, error) {
	records, err := readRecords(r, 4, date)
	if err != nil {
		return nil, err
	}
	out := make([]HeadRecord, 0, len(records))
	var errs []error
	for i, rec := range records {
		hr, err := parseHeadRecord(rec, date)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		out = append(out, hr)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func parseHeadRecord(rec []string, date time.Time) (HeadRecord, error) {
	t, err := ParseCSVTime(date, rec[0])
	if err != nil {
		return HeadRecord{}, err
	}
	user, err := strconv.Atoi(strings.TrimSpace(rec[1]))
	if err != nil {
		return HeadRecord{}, fmt.Errorf("invalid user id %q: %w", rec[1], err)
	}
	pos, err := parseTuple(rec[2], 3)
	if err != nil {
		return HeadRecord{}, fmt.Errorf("position: %w", err)
	}
	rot, err := parseTuple(rec[3], 3)
	if err != nil {
		return HeadRecord{}, fmt.Errorf("rotation: %w", err)
	}
	return HeadRecord{
		UserID:      user,
		Time:        t,
		Position:    trackerToDB(pos),
		Orientation: r3.Vec{X: rot[0], Y: rot[1], Z: rot[2]},
	}, nil
}

// ReadTouchCSV parses touch rows of the form
//
//	time,userid,"(x, y)",duration_ms
//
// with wall positions in pixels.
func ReadTouchCSV(r io.Reader, date time.Time) ([]TouchRecord, error) {
	records, err := readRecords(r, 4, date)
	if err != nil {
		return nil, err
	}
	out := make([]TouchRecord, 0, len(records))
	for i, rec := range records {
		t, err := ParseCSVTime(date, rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		user, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid user id %q: %w", i+1, rec[1], err)
		}
		pos, err := parseTuple(rec[2], 2)
		if err != nil {
			return nil, fmt.Errorf("row %d: position: %w", i+1, err)
		}
		dur, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid duration %q: %w", i+1, rec[3], err)
		}
		out = append(out, TouchRecord{UserID: user, Time: t, Position: r2.Vec{X: pos[0], Y: pos[1]}, DurationMs: dur})
	}
	return out, nil
}
