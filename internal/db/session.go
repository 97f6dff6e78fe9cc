package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motion.report/internal/motion"
)

const metaStartTime = "start_time_unix_ms"

// SetSessionStart records the wall-clock time of the first sample.
func (db *DB) SetSessionStart(ctx context.Context, start time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO session_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaStartTime, strconv.FormatInt(start.UnixMilli(), 10))
	if err != nil {
		return fmt.Errorf("failed to store session start: %w", err)
	}
	return nil
}

// SessionStart returns the recorded session start, or the zero time if none
// was stored.
func (db *DB) SessionStart(ctx context.Context) (time.Time, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT value FROM session_meta WHERE key = ?`, metaStartTime).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read session start: %w", err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid session start %q: %w", v, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// InsertHeadSamples appends samples for userID in one transaction, storing
// running position sums alongside each row.
func (db *DB) InsertHeadSamples(ctx context.Context, userID int, samples []motion.Sample) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prev r3.Vec
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(x), 0), COALESCE(SUM(y), 0), COALESCE(SUM(z), 0) FROM head WHERE user = ?`,
		userID).Scan(&prev.X, &prev.Y, &prev.Z)
	if err != nil {
		return fmt.Errorf("failed to read existing sums: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO head (user, x, y, z, pitch, yaw, roll, time, x_sum, y_sum, z_sum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare head insert: %w", err)
	}
	defer stmt.Close()

	sum := prev
	for _, s := range samples {
		sum = r3.Add(sum, s.Position)
		_, err := stmt.ExecContext(ctx, userID,
			s.Position.X, s.Position.Y, s.Position.Z,
			s.Orientation.Y, s.Orientation.X, s.Orientation.Z,
			s.TimestampMs, sum.X, sum.Y, sum.Z)
		if err != nil {
			return fmt.Errorf("failed to insert head sample for user %d: %w", userID, err)
		}
	}
	return tx.Commit()
}

// InsertTouches appends touches for userID in one transaction.
func (db *DB) InsertTouches(ctx context.Context, userID int, touches []motion.Touch) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO touch (user, x, y, time, duration) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare touch insert: %w", err)
	}
	defer stmt.Close()

	for _, tc := range touches {
		if _, err := stmt.ExecContext(ctx, userID, tc.Position.X, tc.Position.Y, tc.TimestampMs, tc.DurationMs); err != nil {
			return fmt.Errorf("failed to insert touch for user %d: %w", userID, err)
		}
	}
	return tx.Commit()
}

// UserIDs returns the distinct users with head samples, ascending.
func (db *DB) UserIDs(ctx context.Context) ([]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT user FROM head ORDER BY user`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadUserTrack reads one user's samples and touches ordered by time.
func (db *DB) LoadUserTrack(ctx context.Context, userID int) (*motion.UserTrack, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT time, x, y, z, yaw, pitch, roll
		FROM head WHERE user = ? ORDER BY time, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query head samples: %w", err)
	}
	defer rows.Close()

	var samples []motion.Sample
	for rows.Next() {
		var s motion.Sample
		if err := rows.Scan(&s.TimestampMs,
			&s.Position.X, &s.Position.Y, &s.Position.Z,
			&s.Orientation.X, &s.Orientation.Y, &s.Orientation.Z); err != nil {
			return nil, fmt.Errorf("failed to scan head sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	touches, err := db.loadTouches(ctx, userID)
	if err != nil {
		return nil, err
	}
	return motion.NewUserTrack(userID, samples, touches)
}

func (db *DB) loadTouches(ctx context.Context, userID int) ([]motion.Touch, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT time, x, y, duration FROM touch WHERE user = ? ORDER BY time, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query touches: %w", err)
	}
	defer rows.Close()

	var touches []motion.Touch
	for rows.Next() {
		var tc motion.Touch
		if err := rows.Scan(&tc.TimestampMs, &tc.Position.X, &tc.Position.Y, &tc.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan touch: %w", err)
		}
		touches = append(touches, tc)
	}
	return touches, rows.Err()
}

// LoadSession reads every user's track. An empty database is an error
// wrapping motion.ErrEmptyTrack.
func (db *DB) LoadSession(ctx context.Context) (*motion.Session, error) {
	ids, err := db.UserIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("database has no head samples: %w", motion.ErrEmptyTrack)
	}

	tracks := make([]*motion.UserTrack, 0, len(ids))
	for _, id := range ids {
		track, err := db.LoadUserTrack(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load user %d: %w", id, err)
		}
		tracks = append(tracks, track)
	}

	start, err := db.SessionStart(ctx)
	if err != nil {
		return nil, err
	}
	return motion.NewSession(start, tracks)
}
