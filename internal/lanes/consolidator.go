// Package lanes turns raw vehicle trajectories into consolidated lane
// centerline polylines and indexes them for spatial queries.
package lanes

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/laneflow/internal/geom"
	"github.com/banshee-data/laneflow/internal/monitoring"
)

// Cluster strategies for track merging.
const (
	// StrategySeedLink compares candidate tracks only against the
	// cluster's original seed track. This is the historical behaviour:
	// grouping is not transitive and depends on input order.
	StrategySeedLink = "seed-link"
	// StrategySingleLink compares candidates against every member of
	// the cluster (transitive closure). Produces different, usually
	// larger, clusters than seed-link.
	StrategySingleLink = "single-link"
)

// Lane is a consolidated lane centerline. The ID is the lane's position
// in the consolidation output and is never mutated after creation.
type Lane struct {
	ID     int          `json:"lane_id"`
	Points []geom.Point `json:"points"`
}

// RawTrack is one vehicle's observed trajectory: the ordered positions
// from every frame in which the vehicle was detected, plus the number
// of frames it was observed for.
type RawTrack struct {
	TrackID    int64        `json:"track_id"`
	Points     []geom.Point `json:"points"`
	FrameCount int          `json:"frame_count"`
}

// ConsolidatorConfig holds tuning parameters for the consolidation
// pipeline.
type ConsolidatorConfig struct {
	MinTrackDurationSeconds float64 // Minimum observed duration for a track to survive filtering
	MinTrackPoints          int     // Minimum point count for a track to survive filtering
	SmoothingWindow         int     // Moving-average window applied to tracks and merged clusters
	MergeThreshold          float64 // Hausdorff distance below which tracks merge (pixels)
	SnapTolerance           float64 // Endpoint snap distance (pixels)
	ClusterStrategy         string  // StrategySeedLink or StrategySingleLink
}

// DefaultConsolidatorConfig returns the production-default consolidation
// parameters.
func DefaultConsolidatorConfig() ConsolidatorConfig {
	return ConsolidatorConfig{
		MinTrackDurationSeconds: 3.0,
		MinTrackPoints:          5,
		SmoothingWindow:         5,
		MergeThreshold:          20.0,
		SnapTolerance:           15.0,
		ClusterStrategy:         StrategySeedLink,
	}
}

// Consolidator runs the Filter → Smooth → Cluster → Snap pipeline.
// Each stage is total and terminal: a track either survives a stage or
// is dropped, with no retries.
type Consolidator struct {
	cfg ConsolidatorConfig
}

// NewConsolidator creates a consolidator with the given configuration.
func NewConsolidator(cfg ConsolidatorConfig) *Consolidator {
	if cfg.ClusterStrategy == "" {
		cfg.ClusterStrategy = StrategySeedLink
	}
	return &Consolidator{cfg: cfg}
}

// Consolidate reduces raw per-vehicle tracks to an ordered list of lane
// polylines. Lane IDs are assigned by output position. Iteration order
// follows the input slice so runs over the same input are reproducible.
// Individual malformed tracks are skipped, never fatal.
func (c *Consolidator) Consolidate(tracks []RawTrack, fps float64) []Lane {
	valid := c.filterTracks(tracks, fps)
	monitoring.Logf("consolidate: %d of %d tracks passed filtering (min %.1fs duration)",
		len(valid), len(tracks), c.cfg.MinTrackDurationSeconds)
	if len(valid) == 0 {
		return nil
	}

	merged := c.mergeSimilar(valid)
	monitoring.Logf("consolidate: %d polylines after merging (threshold %.1f, %s)",
		len(merged), c.cfg.MergeThreshold, c.cfg.ClusterStrategy)

	snapped := c.snapEndpoints(merged)

	out := make([]Lane, 0, len(snapped))
	for _, pts := range snapped {
		out = append(out, Lane{ID: len(out), Points: pts})
	}
	monitoring.Logf("consolidate: produced %d lanes (%s)", len(out), summarise(out))
	return out
}

// filterTracks keeps tracks meeting the duration and point-count
// minimums, smoothing each survivor.
func (c *Consolidator) filterTracks(tracks []RawTrack, fps float64) [][]geom.Point {
	minFrames := int(c.cfg.MinTrackDurationSeconds * fps)

	var valid [][]geom.Point
	for _, tr := range tracks {
		if tr.FrameCount < minFrames || len(tr.Points) < c.cfg.MinTrackPoints {
			continue
		}
		valid = append(valid, geom.SmoothPolyline(tr.Points, c.cfg.SmoothingWindow))
	}
	return valid
}

// mergeSimilar groups tracks whose shape distance falls below the merge
// threshold and collapses each group to one polyline. Grouping is a
// greedy single pass in input order. Under seed-link each later track
// is compared only to the group's seed, not to members added along the
// way; single-link compares against all members.
func (c *Consolidator) mergeSimilar(tracks [][]geom.Point) [][]geom.Point {
	if len(tracks) <= 1 {
		return tracks
	}

	used := make([]bool, len(tracks))
	var merged [][]geom.Point

	for i, seed := range tracks {
		if used[i] {
			continue
		}
		used[i] = true
		members := [][]geom.Point{seed}

		for j := i + 1; j < len(tracks); j++ {
			if used[j] {
				continue
			}
			if c.belongs(members, tracks[j]) {
				members = append(members, tracks[j])
				used[j] = true
			}
		}

		if len(members) == 1 {
			merged = append(merged, seed)
			continue
		}

		// Concatenate member points in cluster order and re-smooth the
		// concatenation.
		var all []geom.Point
		for _, m := range members {
			all = append(all, m...)
		}
		merged = append(merged, geom.SmoothPolyline(all, c.cfg.SmoothingWindow))
	}
	return merged
}

func (c *Consolidator) belongs(members [][]geom.Point, candidate []geom.Point) bool {
	if c.cfg.ClusterStrategy == StrategySingleLink {
		for _, m := range members {
			if geom.ShapeDistance(m, candidate) < c.cfg.MergeThreshold {
				return true
			}
		}
		return false
	}
	return geom.ShapeDistance(members[0], candidate) < c.cfg.MergeThreshold
}

// snapEndpoints reconciles nearby endpoints: each polyline's start and
// end are compared against every other polyline's endpoints and
// overwritten with the neighbour coordinate when within tolerance.
// Comparisons read the pre-snap polylines, so snapping one polyline
// never retroactively changes another in the same pass. Polylines with
// fewer than 2 points are dropped.
func (c *Consolidator) snapEndpoints(tracks [][]geom.Point) [][]geom.Point {
	if len(tracks) <= 1 {
		return tracks
	}
	tol := c.cfg.SnapTolerance

	var snapped [][]geom.Point
	for i, track := range tracks {
		if len(track) < 2 {
			continue
		}

		out := make([]geom.Point, len(track))
		copy(out, track)
		start := track[0]
		end := track[len(track)-1]

		for j, other := range tracks {
			if j == i || len(other) < 2 {
				continue
			}
			otherStart := other[0]
			otherEnd := other[len(other)-1]

			if geom.Dist(start, otherStart) < tol {
				out[0] = otherStart
			} else if geom.Dist(start, otherEnd) < tol {
				out[0] = otherEnd
			}

			if geom.Dist(end, otherStart) < tol {
				out[len(out)-1] = otherStart
			} else if geom.Dist(end, otherEnd) < tol {
				out[len(out)-1] = otherEnd
			}
		}
		snapped = append(snapped, out)
	}
	return snapped
}

func summarise(out []Lane) string {
	if len(out) == 0 {
		return "no lanes"
	}
	lengths := make([]float64, 0, len(out))
	for _, l := range out {
		if t, err := geom.NewArcTable(l.Points); err == nil {
			lengths = append(lengths, t.Length())
		}
	}
	if len(lengths) == 0 {
		return "all degenerate"
	}
	return fmt.Sprintf("mean length %.1fpx", stat.Mean(lengths, nil))
}
