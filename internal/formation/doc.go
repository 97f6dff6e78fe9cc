// Package formation detects F-formations: pairs of users who stand close
// together while facing each other for a sustained period.
//
// Responsibilities: per-step pair classification on the floor plane and a
// batch hysteresis sweep over every user pair of a session.
// Key types: Detector, Config, Event, Strength.
//
// Detection is a single pass per session. Pairs are swept concurrently,
// each pair sequentially, and results are returned in (UserA, UserB,
// EndTimeMs) order.
package formation
