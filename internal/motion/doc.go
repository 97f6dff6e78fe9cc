// Package motion owns the recorded motion-capture data model.
//
// Responsibilities: per-user head samples and wall touches, prefix sums
// over position and orientation built once at load time, and time-indexed
// lookup into a track.
// Key types: Sample, Touch, UserTrack, Session.
//
// Tracks are immutable after NewUserTrack returns, so readers never lock.
// No SQL or CSV code is allowed in this package; see internal/db and
// internal/ingest for the loading layer.
package motion
