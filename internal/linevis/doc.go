// Package linevis turns smoothed user tracks and detected formations into
// drawable polygons for the visible interval.
//
// A Renderer subscribes to a timeframe.Controller and rebuilds its Scene on
// every event that changes what is visible. Time runs along the x axis in
// pixels; a user's distance along the wall maps to y and their distance
// from the wall sets line width and opacity.
package linevis
