// Package predict produces ranked lane-following path predictions for
// tracked vehicles and maintains the per-vehicle state needed to
// produce them: bounded position histories, temporal smoothing of
// prediction sets, and staleness eviction.
package predict

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/laneflow/internal/geom"
	"github.com/banshee-data/laneflow/internal/lanes"
)

// PredictorConfig holds tuning parameters for candidate generation and
// scoring. Distances are pixels, durations seconds.
type PredictorConfig struct {
	FrameRate      float64 // Frames per second of the source footage
	HorizonSeconds float64 // How far into the future paths extend

	MinHistoryPoints int     // History points required before predicting
	MinSpeed         float64 // Minimum smoothed speed (px/s) to predict
	MinMoveDistance  float64 // Displacement over the direction window required for a movement direction

	SearchRadius       float64 // Candidate lane query radius
	MaxCandidates      int     // Nearest lanes considered per invocation
	MaxLaneDistance    float64 // Candidates farther than this are discarded
	MinAlignment       float64 // Candidates less aligned than this are discarded
	MinProbability     float64 // Candidates scoring at or below this are discarded
	CloseLaneBoost     float64 // Probability multiplier for very close lanes
	CloseLaneRadius    float64 // Distance under which the boost applies
	PathPoints         int     // Points sampled along each predicted path
	MaxTravelDist      float64 // Cap on predicted travel distance (pixels)
	TravelDistScale    float64 // Empirical travel-distance scaling constant
	VelocityWindow     int     // Frame pairs averaged for smoothed velocity
	DirectionWindow    int     // Frames spanned for the movement direction
	DefaultConsistency float64 // Direction consistency when history is too short
}

// DefaultPredictorConfig returns the production-default prediction
// parameters for footage at the given frame rate.
func DefaultPredictorConfig(frameRate float64) PredictorConfig {
	return PredictorConfig{
		FrameRate:          frameRate,
		HorizonSeconds:     2.0,
		MinHistoryPoints:   8,
		MinSpeed:           0.5,
		MinMoveDistance:    2.0,
		SearchRadius:       80,
		MaxCandidates:      4,
		MaxLaneDistance:    50,
		MinAlignment:       0.3,
		MinProbability:     0.2,
		CloseLaneBoost:     1.5,
		CloseLaneRadius:    15,
		PathPoints:         8,
		MaxTravelDist:      120,
		TravelDistScale:    0.6,
		VelocityWindow:     3,
		DirectionWindow:    5,
		DefaultConsistency: 0.5,
	}
}

// Prediction is one candidate future path along a lane. Immutable once
// created; a fresh set is produced on every prediction tick.
type Prediction struct {
	LaneID         int          `json:"lane_id"`
	Probability    float64      `json:"probability"`
	Path           []geom.Point `json:"path"`
	LaneDirection  geom.Point   `json:"lane_direction"`
	Alignment      float64      `json:"alignment"`
	DistanceToLane float64      `json:"distance_to_lane"`
	TravelDistance float64      `json:"travel_distance"`
}

// Predictor scores nearby lanes against one vehicle's recent movement.
// It holds only the shared read-only lane index, so a single Predictor
// may serve concurrent per-vehicle calls.
type Predictor struct {
	index *lanes.Index
	cfg   PredictorConfig
}

// NewPredictor creates a predictor over the given lane index.
func NewPredictor(index *lanes.Index, cfg PredictorConfig) *Predictor {
	return &Predictor{index: index, cfg: cfg}
}

// Predict returns up to 3 candidate future paths for a vehicle with the
// given position history (oldest first, most recent last), ranked by
// probability. An empty result means the preconditions were not met or
// no lane scored above threshold; it is never an error.
func (pr *Predictor) Predict(history []geom.Point) []Prediction {
	if len(history) < pr.cfg.MinHistoryPoints {
		return nil
	}
	current := history[len(history)-1]

	velocity, ok := pr.smoothedVelocity(history)
	if !ok || r2.Norm(velocity) < pr.cfg.MinSpeed {
		return nil
	}
	movement, ok := pr.movementDirection(history)
	if !ok {
		return nil
	}

	nearby := pr.index.LanesWithinRadius(current, pr.cfg.SearchRadius)
	if len(nearby) > pr.cfg.MaxCandidates {
		nearby = nearby[:pr.cfg.MaxCandidates]
	}

	consistency := pr.directionConsistency(history)

	var out []Prediction
	for _, cand := range nearby {
		if cand.Distance > pr.cfg.MaxLaneDistance {
			continue
		}

		laneDir, ok := pr.index.DirectionAt(cand.Lane.ID, cand.Progress)
		if !ok {
			continue
		}

		// Unsigned alignment: lane polyline orientation may not match
		// travel direction.
		alignment := math.Abs(r2.Dot(movement, laneDir))
		if alignment < pr.cfg.MinAlignment {
			continue
		}

		probability := pr.laneProbability(alignment, cand.Distance, consistency)
		if probability <= pr.cfg.MinProbability {
			continue
		}

		travel := pr.travelDistance(velocity)
		path := pr.index.SamplePath(cand.Lane.ID, cand.Progress, travel, pr.cfg.PathPoints)
		if len(path) < 2 {
			continue
		}

		out = append(out, Prediction{
			LaneID:         cand.Lane.ID,
			Probability:    probability,
			Path:           path,
			LaneDirection:  geom.FromVec(laneDir),
			Alignment:      alignment,
			DistanceToLane: cand.Distance,
			TravelDistance: travel,
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Probability > out[b].Probability
	})
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// smoothedVelocity averages the last VelocityWindow frame-to-frame
// displacements, scaled by the frame interval, yielding px/s.
func (pr *Predictor) smoothedVelocity(history []geom.Point) (r2.Vec, bool) {
	if len(history) < pr.cfg.VelocityWindow+1 {
		return r2.Vec{}, false
	}
	dt := 1.0 / pr.cfg.FrameRate

	var sum r2.Vec
	n := 0
	for i := len(history) - pr.cfg.VelocityWindow; i < len(history); i++ {
		d := r2.Sub(history[i].Vec(), history[i-1].Vec())
		sum = r2.Add(sum, r2.Scale(1/dt, d))
		n++
	}
	if n == 0 {
		return r2.Vec{}, false
	}
	return r2.Scale(1/float64(n), sum), true
}

// movementDirection is the unit vector from DirectionWindow frames back
// to the current position. Displacements under MinMoveDistance are
// rejected as noise.
func (pr *Predictor) movementDirection(history []geom.Point) (r2.Vec, bool) {
	if len(history) < pr.cfg.DirectionWindow {
		return r2.Vec{}, false
	}
	start := history[len(history)-pr.cfg.DirectionWindow]
	end := history[len(history)-1]
	d := r2.Sub(end.Vec(), start.Vec())
	length := r2.Norm(d)
	if length < pr.cfg.MinMoveDistance {
		return r2.Vec{}, false
	}
	return r2.Scale(1/length, d), true
}

// directionConsistency measures how steadily the vehicle has been
// moving in one direction: the mean positive-part dot product of
// consecutive recent displacement directions, in [0, 1]. Defaults to
// 0.5 when history is too short.
func (pr *Predictor) directionConsistency(history []geom.Point) float64 {
	if len(history) < pr.cfg.DirectionWindow+1 {
		return pr.cfg.DefaultConsistency
	}

	var dirs []r2.Vec
	for i := len(history) - pr.cfg.VelocityWindow; i < len(history); i++ {
		d := r2.Sub(history[i].Vec(), history[i-1].Vec())
		if n := r2.Norm(d); n > 0 {
			dirs = append(dirs, r2.Scale(1/n, d))
		}
	}
	if len(dirs) < 2 {
		return pr.cfg.DefaultConsistency
	}

	var sum float64
	count := 0
	for i := 1; i < len(dirs); i++ {
		sum += math.Max(0, r2.Dot(dirs[i], dirs[i-1]))
		count++
	}
	return sum / float64(count)
}

// laneProbability combines alignment, a linear distance penalty, and
// the consistency boost, with an extra multiplier for lanes the vehicle
// is nearly on top of. Result is clamped to [0, 1].
func (pr *Predictor) laneProbability(alignment, distance, consistency float64) float64 {
	p := alignment
	p *= math.Max(0, 1-distance/pr.cfg.MaxLaneDistance)
	p *= 0.5 + 0.5*consistency
	if distance < pr.cfg.CloseLaneRadius {
		p *= pr.cfg.CloseLaneBoost
	}
	return math.Min(1.0, p)
}

// travelDistance estimates how far the vehicle moves within the
// prediction horizon. The formula multiplies an already per-second
// speed by the frame rate again; that matches observed behaviour in the
// field-tuned system this replaces, so it is kept verbatim rather than
// re-derived, with TravelDistScale absorbing the unit mismatch.
func (pr *Predictor) travelDistance(velocity r2.Vec) float64 {
	speed := r2.Norm(velocity)
	d := speed * pr.cfg.HorizonSeconds * pr.cfg.FrameRate * pr.cfg.TravelDistScale
	return math.Min(d, pr.cfg.MaxTravelDist)
}
