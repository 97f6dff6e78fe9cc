// Package geometry builds closed outline polygons for polylines whose
// thickness varies per vertex, joining segments with miters.
package geometry

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrNoPoints is returned when a stroke has no vertices.
	ErrNoPoints = errors.New("geometry: no points")
	// ErrLengthMismatch is returned when points and thicknesses differ in length.
	ErrLengthMismatch = errors.New("geometry: points and thicknesses differ in length")
)

// fallbackDir is used for both segments when either has zero length.
var fallbackDir = r2.Vec{X: 0, Y: 1}

// parallelEpsilon is the relative cross-product magnitude below which two
// lines are treated as parallel.
const parallelEpsilon = 1e-12

func vec(p orb.Point) r2.Vec   { return r2.Vec{X: p[0], Y: p[1]} }
func point(v r2.Vec) orb.Point { return orb.Point{v.X, v.Y} }

// leftOf offsets p by t along the left normal of unit direction n.
func leftOf(p, n r2.Vec, t float64) r2.Vec { return r2.Vec{X: p.X - n.Y*t, Y: p.Y + n.X*t} }

// rightOf offsets p by t along the right normal of unit direction n.
func rightOf(p, n r2.Vec, t float64) r2.Vec { return r2.Vec{X: p.X + n.Y*t, Y: p.Y - n.X*t} }

// MiterJoin returns the left and right outline vertices at p2 for the path
// p1 -> p2 -> p3 with full stroke widths t1, t2 and t3. Each segment is
// offset by half the width at each of its endpoints and the offset lines on
// each side are intersected.
func MiterJoin(p1, p2, p3 orb.Point, t1, t2, t3 float64) (left, right orb.Point) {
	t1, t2, t3 = t1/2, t2/2, t3/2
	a, b, c := vec(p1), vec(p2), vec(p3)

	d1, d2 := r2.Sub(b, a), r2.Sub(c, b)
	l1, l2 := r2.Norm(d1), r2.Norm(d2)
	var n1, n2 r2.Vec
	if l1 == 0 || l2 == 0 {
		n1, n2 = fallbackDir, fallbackDir
	} else {
		n1, n2 = r2.Scale(1/l1, d1), r2.Scale(1/l2, d2)
	}

	left = LineIntersection(
		point(leftOf(a, n1, t1)), point(leftOf(b, n1, t2)),
		point(leftOf(b, n2, t2)), point(leftOf(c, n2, t3)),
	)
	right = LineIntersection(
		point(rightOf(a, n1, t1)), point(rightOf(b, n1, t2)),
		point(rightOf(b, n2, t2)), point(rightOf(c, n2, t3)),
	)
	return left, right
}

// LineIntersection intersects the infinite lines through a1-a2 and b1-b2.
// Parallel or degenerate lines yield the midpoint of a2 and b1.
func LineIntersection(a1, a2, b1, b2 orb.Point) orb.Point {
	p, q := vec(a1), vec(b1)
	r, s := r2.Sub(vec(a2), p), r2.Sub(vec(b2), q)

	den := r2.Cross(r, s)
	scale := r2.Norm(r) * r2.Norm(s)
	if scale == 0 || math.Abs(den) <= parallelEpsilon*scale {
		return point(r2.Scale(0.5, r2.Add(vec(a2), vec(b1))))
	}
	u := r2.Cross(r2.Sub(q, p), s) / den
	return point(r2.Add(p, r2.Scale(u, r)))
}

// Stroke returns the closed outline of the polyline through points with the
// given per-vertex widths: the left chain forward followed by the right
// chain reversed. Endpoints are joined against a mirrored phantom
// neighbour. A single point is treated as a zero-length segment.
func Stroke(points []orb.Point, thicknesses []float64) (orb.Ring, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	if len(points) != len(thicknesses) {
		return nil, ErrLengthMismatch
	}
	if len(points) == 1 {
		points = []orb.Point{points[0], points[0]}
		thicknesses = []float64{thicknesses[0], thicknesses[0]}
	}

	n := len(points)
	lefts := make([]orb.Point, n)
	rights := make([]orb.Point, n)
	for i := range points {
		var prev, next orb.Point
		var tPrev, tNext float64
		if i == 0 {
			prev, tPrev = mirror(points[1], points[0]), thicknesses[0]
		} else {
			prev, tPrev = points[i-1], thicknesses[i-1]
		}
		if i == n-1 {
			next, tNext = mirror(points[n-2], points[n-1]), thicknesses[n-1]
		} else {
			next, tNext = points[i+1], thicknesses[i+1]
		}
		lefts[i], rights[i] = MiterJoin(prev, points[i], next, tPrev, thicknesses[i], tNext)
	}

	ring := make(orb.Ring, 0, 2*n+1)
	ring = append(ring, lefts...)
	for i := n - 1; i >= 0; i-- {
		ring = append(ring, rights[i])
	}
	ring = append(ring, ring[0])
	return ring, nil
}

// mirror reflects p through centre.
func mirror(p, centre orb.Point) orb.Point {
	return orb.Point{2*centre[0] - p[0], 2*centre[1] - p[1]}
}

// Quad returns the vertical band between p1 and p2 whose height is t1 at p1
// and t2 at p2, as a closed ring.
func Quad(p1, p2 orb.Point, t1, t2 float64) orb.Ring {
	return orb.Ring{
		{p1[0], p1[1] + t1/2},
		{p2[0], p2[1] + t2/2},
		{p2[0], p2[1] - t2/2},
		{p1[0], p1[1] - t1/2},
		{p1[0], p1[1] + t1/2},
	}
}

// Area returns the unsigned area enclosed by ring.
func Area(ring orb.Ring) float64 {
	return math.Abs(planar.Area(ring))
}

// PolylineLength returns the total length of the path through points.
func PolylineLength(points []orb.Point) float64 {
	return planar.Length(orb.LineString(points))
}
