package lanes

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/laneflow/internal/geom"
)

// Index holds an immutable set of lanes with precomputed arc-length
// tables. Built once per run and shared read-only across all prediction
// calls; queries are safe for concurrent readers.
type Index struct {
	lanes  []Lane
	tables []*geom.ArcTable
	byID   map[int]int // lane ID → position in lanes/tables
}

// Match describes one lane's relationship to a query point.
type Match struct {
	Lane         Lane
	Distance     float64
	ClosestPoint geom.Point
	Progress     float64
}

// BuildIndex precomputes per-lane arc-length tables. Fails if any lane
// has fewer than 2 points or zero length; the consolidator never emits
// such lanes, so this is a defensive check against hand-edited lane
// files.
func BuildIndex(ls []Lane) (*Index, error) {
	ix := &Index{
		lanes:  make([]Lane, len(ls)),
		tables: make([]*geom.ArcTable, len(ls)),
		byID:   make(map[int]int, len(ls)),
	}
	copy(ix.lanes, ls)

	for i, lane := range ix.lanes {
		t, err := geom.NewArcTable(lane.Points)
		if err != nil {
			return nil, fmt.Errorf("lane %d: %w", lane.ID, err)
		}
		if _, dup := ix.byID[lane.ID]; dup {
			return nil, fmt.Errorf("duplicate lane id %d", lane.ID)
		}
		ix.tables[i] = t
		ix.byID[lane.ID] = i
	}
	return ix, nil
}

// Len returns the number of indexed lanes.
func (ix *Index) Len() int { return len(ix.lanes) }

// Lanes returns the indexed lanes in index order. The returned slice
// must not be modified.
func (ix *Index) Lanes() []Lane { return ix.lanes }

// Length returns the total arc length of the lane with the given ID,
// or 0 when unknown.
func (ix *Index) Length(laneID int) float64 {
	pos, ok := ix.byID[laneID]
	if !ok {
		return 0
	}
	return ix.tables[pos].Length()
}

// NearestLane scans all lanes and returns the one closest to p. The
// boolean is false when the index is empty. Ties break to the first
// lane in index order, so results are deterministic.
func (ix *Index) NearestLane(p geom.Point) (Match, bool) {
	var best Match
	found := false
	for i, t := range ix.tables {
		progress, closest, dist := t.Project(p)
		if !found || dist < best.Distance {
			best = Match{Lane: ix.lanes[i], Distance: dist, ClosestPoint: closest, Progress: progress}
			found = true
		}
	}
	return best, found
}

// LanesWithinRadius returns all lanes within the given distance of p,
// sorted ascending by distance. The sort is stable: equal distances
// preserve index order.
func (ix *Index) LanesWithinRadius(p geom.Point, radius float64) []Match {
	var matches []Match
	for i, t := range ix.tables {
		progress, closest, dist := t.Project(p)
		if dist <= radius {
			matches = append(matches, Match{
				Lane:         ix.lanes[i],
				Distance:     dist,
				ClosestPoint: closest,
				Progress:     progress,
			})
		}
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Distance < matches[b].Distance
	})
	return matches
}

// DirectionAt returns the lane's unit direction at the given arc-length
// coordinate. The boolean is false when the lane ID is unknown.
func (ix *Index) DirectionAt(laneID int, progress float64) (r2.Vec, bool) {
	pos, ok := ix.byID[laneID]
	if !ok {
		return r2.Vec{}, false
	}
	return ix.tables[pos].DirectionAt(progress), true
}

// PointAtOffset returns the point reached by travelling the given
// distance forward from progress along the lane. The resulting
// coordinate is clamped to [0, Length]; there is no extrapolation past
// lane ends.
func (ix *Index) PointAtOffset(laneID int, progress, distance float64) (geom.Point, bool) {
	pos, ok := ix.byID[laneID]
	if !ok {
		return geom.Point{}, false
	}
	return ix.tables[pos].Interpolate(progress + distance), true
}

// SamplePath returns numPoints points at equal arc-length steps from
// startProgress towards startProgress+distance, clamped to the lane
// end. Returns nil when the start is at or past the lane end, when the
// effective range is empty, or when the lane ID is unknown.
func (ix *Index) SamplePath(laneID int, startProgress, distance float64, numPoints int) []geom.Point {
	pos, ok := ix.byID[laneID]
	if !ok || numPoints < 1 {
		return nil
	}
	t := ix.tables[pos]
	total := t.Length()

	if startProgress >= total {
		return nil
	}
	endProgress := startProgress + distance
	if endProgress > total {
		endProgress = total
	}
	if endProgress <= startProgress {
		return nil
	}

	steps := numPoints - 1
	if steps < 1 {
		steps = 1
	}
	step := (endProgress - startProgress) / float64(steps)

	path := make([]geom.Point, 0, numPoints)
	for i := 0; i < numPoints; i++ {
		progress := startProgress + float64(i)*step
		if progress > total {
			progress = total
		}
		path = append(path, t.Interpolate(progress))
		if progress >= endProgress {
			break
		}
	}
	return path
}
