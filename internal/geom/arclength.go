package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// ErrDegeneratePolyline is returned when a polyline cannot be
// arc-length parameterised (fewer than 2 points or zero total length).
var ErrDegeneratePolyline = errors.New("geom: polyline has fewer than 2 points or zero length")

// ArcTable is an arc-length parameterisation of a polyline: cumulative
// segment lengths supporting projection, interpolation and local
// direction queries. Progress is the distance along the polyline
// measured from its first point. An ArcTable is immutable after
// construction and safe for concurrent readers.
type ArcTable struct {
	points []Point
	cum    []float64 // cum[i] is arc length at points[i]; cum[0] == 0
	total  float64
}

// NewArcTable builds an arc-length table for the polyline. The polyline
// may contain zero-length segments (coincident consecutive points);
// direction queries skip over them.
func NewArcTable(points []Point) (*ArcTable, error) {
	if len(points) < 2 {
		return nil, ErrDegeneratePolyline
	}

	segs := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		segs[i] = Dist(points[i-1], points[i])
	}
	cum := make([]float64, len(points))
	floats.CumSum(cum, segs)

	total := cum[len(cum)-1]
	if total <= 0 {
		return nil, ErrDegeneratePolyline
	}

	pts := make([]Point, len(points))
	copy(pts, points)
	return &ArcTable{points: pts, cum: cum, total: total}, nil
}

// Length returns the total arc length of the polyline.
func (t *ArcTable) Length() float64 { return t.total }

// Points returns the underlying polyline vertices. The returned slice
// must not be modified.
func (t *ArcTable) Points() []Point { return t.points }

// Interpolate returns the point at the given arc-length coordinate,
// clamped to [0, Length()].
func (t *ArcTable) Interpolate(progress float64) Point {
	if progress <= 0 {
		return t.points[0]
	}
	if progress >= t.total {
		return t.points[len(t.points)-1]
	}

	// Find the segment containing progress.
	i := searchSegment(t.cum, progress)
	segLen := t.cum[i+1] - t.cum[i]
	if segLen == 0 {
		return t.points[i]
	}
	frac := (progress - t.cum[i]) / segLen
	a := t.points[i].Vec()
	b := t.points[i+1].Vec()
	return FromVec(r2.Add(a, r2.Scale(frac, r2.Sub(b, a))))
}

// Project returns the arc-length coordinate of the point on the
// polyline nearest to p, together with that closest point and its
// distance from p.
func (t *ArcTable) Project(p Point) (progress float64, closest Point, distance float64) {
	distance = math.Inf(1)
	for i := 0; i < len(t.points)-1; i++ {
		cp, frac := ClosestPointOnSegment(p, t.points[i], t.points[i+1])
		if d := Dist(p, cp); d < distance {
			distance = d
			closest = cp
			progress = t.cum[i] + frac*(t.cum[i+1]-t.cum[i])
		}
	}
	return progress, closest, distance
}

// DirectionAt returns the unit direction of the segment containing the
// given arc-length coordinate. If progress falls on a zero-length
// segment the scan continues forward to the next non-degenerate
// segment; if none exists the direction of the final non-degenerate
// segment is returned.
func (t *ArcTable) DirectionAt(progress float64) r2.Vec {
	if progress < 0 {
		progress = 0
	}
	if progress > t.total {
		progress = t.total
	}

	i := searchSegment(t.cum, progress)
	for j := i; j < len(t.points)-1; j++ {
		if d, ok := segmentDirection(t.points[j], t.points[j+1]); ok {
			return d
		}
	}
	// No non-degenerate segment forward of progress; fall back to the
	// last one anywhere in the polyline. NewArcTable guarantees the
	// total length is positive, so one exists.
	for j := len(t.points) - 2; j >= 0; j-- {
		if d, ok := segmentDirection(t.points[j], t.points[j+1]); ok {
			return d
		}
	}
	return r2.Vec{}
}

func segmentDirection(a, b Point) (r2.Vec, bool) {
	v := r2.Sub(b.Vec(), a.Vec())
	n := r2.Norm(v)
	if n == 0 {
		return r2.Vec{}, false
	}
	return r2.Scale(1/n, v), true
}

// searchSegment returns the index i such that cum[i] <= progress and
// progress falls within segment [i, i+1]. Binary search over the
// cumulative table; progress must already be clamped.
func searchSegment(cum []float64, progress float64) int {
	lo, hi := 0, len(cum)-2
	for lo < hi {
		mid := (lo + hi) / 2
		if cum[mid+1] < progress {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
