package db

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/motion.report/internal/config"
	"github.com/banshee-data/motion.report/internal/formation"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
)

func init() {
	monitoring.SetLogger(nil)
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestPragmasApplied(t *testing.T) {
	database := newTestDB(t)

	var journalMode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, foreignKeys int
	require.NoError(t, database.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations_UpDownUp(t *testing.T) {
	database := newTestDB(t)
	fsys := MigrationsFS()

	version, dirty, err := database.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, database.MigrateDown(fsys))
	version, _, err = database.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='formation_events'`).Scan(&n))
	assert.Equal(t, 0, n)

	require.NoError(t, database.MigrateUp(fsys))
	require.NoError(t, database.MigrateUp(fsys), "second up should be a no-op")
	version, _, err = database.MigrateVersion(fsys)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestOpenDB_FreshDatabaseHasNoVersion(t *testing.T) {
	database, err := OpenDB(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer database.Close()

	version, dirty, err := database.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	var out bytes.Buffer

	require.NoError(t, RunMigrateCommand([]string{"up"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 2")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"version", "1"}, path, &out))
	assert.Contains(t, out.String(), "Migrated to version 1")

	out.Reset()
	require.NoError(t, RunMigrateCommand([]string{"status"}, path, &out))
	assert.Contains(t, out.String(), "Current version: 1 (dirty: false)")

	assert.Error(t, RunMigrateCommand(nil, path, &out))
	assert.ErrorContains(t, RunMigrateCommand([]string{"sideways"}, path, &out), "unknown migrate action")
	assert.Error(t, RunMigrateCommand([]string{"force", "x"}, path, &out))
	require.NoError(t, RunMigrateCommand([]string{"help"}, path, &out))
}

func TestLoadSession_RoundTrip(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	start := time.Date(2016, 5, 4, 13, 30, 0, 0, time.UTC)
	require.NoError(t, database.SetSessionStart(ctx, start))

	user1 := []motion.Sample{
		{TimestampMs: 0, Position: r3.Vec{X: 10, Y: 170, Z: 80}, Orientation: r3.Vec{X: 30, Y: -5, Z: 1}},
		{TimestampMs: 100, Position: r3.Vec{X: 12, Y: 171, Z: 82}, Orientation: r3.Vec{X: 31, Y: -4, Z: 0}},
	}
	user2 := []motion.Sample{
		{TimestampMs: 0, Position: r3.Vec{X: 200, Y: 160, Z: 150}},
		{TimestampMs: 200, Position: r3.Vec{X: 190, Y: 160, Z: 140}},
	}
	require.NoError(t, database.InsertHeadSamples(ctx, 2, user2))
	require.NoError(t, database.InsertHeadSamples(ctx, 1, user1))
	require.NoError(t, database.InsertTouches(ctx, 1, []motion.Touch{
		{TimestampMs: 50, Position: r2.Vec{X: 1024, Y: 300}, DurationMs: 120},
	}))

	session, err := database.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, session.UserIDs())
	assert.True(t, start.Equal(session.StartTime), "start time %v", session.StartTime)
	assert.Equal(t, 200.0, session.DurationMs)

	u1 := session.User(1)
	require.Equal(t, 2, u1.Len())
	assert.Equal(t, user1[1], u1.Sample(1))
	assert.Equal(t, r3.Vec{X: 22, Y: 341, Z: 162}, u1.PositionPrefix(1))
	touches := u1.Touches(0, 100)
	require.Len(t, touches, 1)
	assert.Equal(t, r2.Vec{X: 1024, Y: 300}, touches[0].Position)
	assert.Equal(t, 120.0, touches[0].DurationMs)

	// Stored running sums match the in-memory prefix sums.
	var xSum float64
	require.NoError(t, database.QueryRow(
		`SELECT x_sum FROM head WHERE user = 1 ORDER BY time DESC LIMIT 1`).Scan(&xSum))
	assert.Equal(t, 22.0, xSum)
}

func TestLoadSession_Empty(t *testing.T) {
	database := newTestDB(t)
	_, err := database.LoadSession(context.Background())
	assert.ErrorIs(t, err, motion.ErrEmptyTrack)

	start, err := database.SessionStart(context.Background())
	require.NoError(t, err)
	assert.True(t, start.IsZero())
}

func TestAnalysisRuns(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	d := 80.0
	params := &config.AnalysisConfig{DistanceMaxCm: &d}
	events := []formation.Event{
		{EndTimeMs: 15900, DurationMs: 11900, UserA: 1, UserB: 2, DriftA: 0.5, DriftB: 3},
		{EndTimeMs: 9000, DurationMs: 10100, UserA: 1, UserB: 2},
		{EndTimeMs: 4000, DurationMs: 10000, UserA: 2, UserB: 3},
	}

	runID, err := database.RecordAnalysisRun(ctx, params, 0, 20000, events)
	require.NoError(t, err)
	assert.Len(t, runID, 36)

	run, err := database.AnalysisRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 3, run.EventCount)
	assert.Equal(t, 80.0, run.Params.GetDistanceMaxCm())
	assert.Equal(t, 90.0, run.Params.GetAngleMaxDeg())
	assert.Equal(t, 20000.0, run.RangeEndMs)

	got, err := database.FormationEvents(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []formation.Event{events[1], events[0], events[2]}, got)

	second, err := database.RecordAnalysisRun(ctx, nil, 0, 20000, nil)
	require.NoError(t, err)
	latest, err := database.LatestAnalysisRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, latest.RunID)

	runs, err := database.AnalysisRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	require.NoError(t, database.DeleteAnalysisRun(ctx, runID))
	got, err = database.FormationEvents(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, got, "events should cascade with their run")

	_, err = database.AnalysisRun(ctx, runID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, database.DeleteAnalysisRun(ctx, runID), ErrRunNotFound)
}
