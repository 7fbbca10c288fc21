// Package geom provides 2D polyline geometry used by lane consolidation
// and trajectory prediction: moving-average smoothing, a Hausdorff-based
// shape distance, point/segment projection, and arc-length
// parameterisation. All coordinates are image-space pixels.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Point is a 2D position in image/pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec converts the point to a gonum r2 vector.
func (p Point) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// FromVec converts a gonum r2 vector back to a Point.
func FromVec(v r2.Vec) Point {
	return Point{X: v.X, Y: v.Y}
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	return r2.Norm(r2.Sub(b.Vec(), a.Vec()))
}

// SmoothPolyline applies a centered moving average with the given window
// size. For index i the window is [max(0,i-w/2), min(n,i+w/2+1)); the
// window is clipped at the sequence ends with no padding or wraparound.
// Inputs shorter than the window are returned unchanged.
func SmoothPolyline(points []Point, windowSize int) []Point {
	if len(points) < windowSize {
		return points
	}

	half := windowSize / 2
	smoothed := make([]Point, len(points))
	for i := range points {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > len(points) {
			end = len(points)
		}

		var sum r2.Vec
		for _, p := range points[start:end] {
			sum = r2.Add(sum, p.Vec())
		}
		smoothed[i] = FromVec(r2.Scale(1/float64(end-start), sum))
	}
	return smoothed
}

// ShapeDistance returns the symmetric Hausdorff distance between two
// polylines: max(h(A→B), h(B→A)) where h is the directed Hausdorff
// distance over polyline vertices. Returns +Inf if either polyline has
// fewer than 2 points. Sensitive to outlier vertices, so inputs should
// be smoothed first.
func ShapeDistance(a, b []Point) float64 {
	if len(a) < 2 || len(b) < 2 {
		return math.Inf(1)
	}
	d1 := directedHausdorff(a, b)
	d2 := directedHausdorff(b, a)
	return math.Max(d1, d2)
}

func directedHausdorff(a, b []Point) float64 {
	var worst float64
	for _, pa := range a {
		best := math.Inf(1)
		for _, pb := range b {
			if d := Dist(pa, pb); d < best {
				best = d
			}
		}
		if best > worst {
			worst = best
		}
	}
	return worst
}

// ClosestPointOnSegment projects p onto segment ab and returns the
// closest point together with the normalised parameter t in [0,1].
func ClosestPointOnSegment(p, a, b Point) (Point, float64) {
	ab := r2.Sub(b.Vec(), a.Vec())
	len2 := r2.Norm2(ab)
	if len2 == 0 {
		return a, 0
	}
	t := r2.Dot(r2.Sub(p.Vec(), a.Vec()), ab) / len2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return FromVec(r2.Add(a.Vec(), r2.Scale(t, ab))), t
}

// PointSegmentDistance returns the distance from p to segment ab.
func PointSegmentDistance(p, a, b Point) float64 {
	closest, _ := ClosestPointOnSegment(p, a, b)
	return Dist(p, closest)
}

// PointPolylineDistance returns the minimum distance from p to any
// segment of the polyline. Returns +Inf for polylines with fewer than
// 2 points.
func PointPolylineDistance(p Point, line []Point) float64 {
	if len(line) < 2 {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		if d := PointSegmentDistance(p, line[i], line[i+1]); d < best {
			best = d
		}
	}
	return best
}

// SimplifyPolyline reduces vertex count with Douglas-Peucker while
// keeping the shape within tolerance. Endpoints are always retained.
// Used when exporting lanes so downstream files stay compact.
func SimplifyPolyline(points []Point, tolerance float64) []Point {
	if len(points) <= 2 || tolerance <= 0 {
		return points
	}
	keep := make([]bool, len(points))
	keep[0] = true
	keep[len(points)-1] = true
	simplifyRange(points, 0, len(points)-1, tolerance, keep)

	out := make([]Point, 0, len(points))
	for i, k := range keep {
		if k {
			out = append(out, points[i])
		}
	}
	return out
}

func simplifyRange(points []Point, first, last int, tolerance float64, keep []bool) {
	if last <= first+1 {
		return
	}
	var worst float64
	worstIdx := -1
	for i := first + 1; i < last; i++ {
		d := PointSegmentDistance(points[i], points[first], points[last])
		if d > worst {
			worst = d
			worstIdx = i
		}
	}
	if worstIdx >= 0 && worst > tolerance {
		keep[worstIdx] = true
		simplifyRange(points, first, worstIdx, tolerance, keep)
		simplifyRange(points, worstIdx, last, tolerance, keep)
	}
}
