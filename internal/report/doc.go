// Package report renders static outputs of an analysis: PNG images of the
// stroke scene and the formation timeline via gonum/plot, and an HTML page of
// per-user statistics via go-echarts.
package report
