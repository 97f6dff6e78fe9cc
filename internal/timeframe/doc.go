// Package timeframe owns the visible time interval of a session and
// broadcasts changes to it.
//
// Responsibilities: zooming around an anchor, panning, wall-clock playback,
// the smoothing width chosen in the options panel, and synchronous fan-out
// of tagged events to listeners in registration order.
// Key types: Controller, Interval, Event, Listener.
//
// Listeners run on the publishing goroutine with the controller unlocked.
// Any mutation or nested Publish attempted from inside a listener fails with
// ErrReentrantPublish.
package timeframe
