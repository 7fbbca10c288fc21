package predict

import (
	"testing"

	"github.com/banshee-data/laneflow/internal/geom"
	"github.com/banshee-data/laneflow/internal/lanes"
	"github.com/banshee-data/laneflow/internal/testutil"
)

const testFrameRate = 10.0

func horizontalLaneIndex(t *testing.T, ys ...float64) *lanes.Index {
	t.Helper()
	var ls []lanes.Lane
	for i, y := range ys {
		ls = append(ls, lanes.Lane{
			ID:     i,
			Points: []geom.Point{{X: 0, Y: y}, {X: 200, Y: y}},
		})
	}
	ix, err := lanes.BuildIndex(ls)
	testutil.AssertNoError(t, err)
	return ix
}

// movingHistory builds n positions advancing by step per frame.
func movingHistory(start, step geom.Point, n int) []geom.Point {
	return testutil.LinePoints(start, step, n)
}

func TestPredictRequiresHistory(t *testing.T) {
	pr := NewPredictor(horizontalLaneIndex(t, 0), DefaultPredictorConfig(testFrameRate))
	history := movingHistory(geom.Point{Y: 5}, geom.Point{X: 2}, 7)
	if got := pr.Predict(history); got != nil {
		t.Errorf("7-point history produced %d predictions", len(got))
	}
}

func TestPredictRequiresMovement(t *testing.T) {
	pr := NewPredictor(horizontalLaneIndex(t, 0), DefaultPredictorConfig(testFrameRate))

	// Stationary vehicle.
	var still []geom.Point
	for i := 0; i < 10; i++ {
		still = append(still, geom.Point{X: 50, Y: 5})
	}
	if got := pr.Predict(still); got != nil {
		t.Errorf("stationary vehicle produced %d predictions", len(got))
	}

	// Creeping below the speed threshold.
	creep := movingHistory(geom.Point{Y: 5}, geom.Point{X: 0.001}, 10)
	if got := pr.Predict(creep); got != nil {
		t.Errorf("creeping vehicle produced %d predictions", len(got))
	}
}

func TestPredictVehicleAlongLane(t *testing.T) {
	pr := NewPredictor(horizontalLaneIndex(t, 0), DefaultPredictorConfig(testFrameRate))

	history := movingHistory(geom.Point{Y: 5}, geom.Point{X: 2}, 10)
	got := pr.Predict(history)
	if len(got) != 1 {
		t.Fatalf("got %d predictions, want 1", len(got))
	}

	p := got[0]
	if p.LaneID != 0 {
		t.Errorf("lane = %d, want 0", p.LaneID)
	}
	// Aligned, 5px away, fully consistent: the close-lane boost clamps
	// the probability at 1.
	testutil.AssertApprox(t, "probability", p.Probability, 1.0, 1e-9)
	testutil.AssertApprox(t, "alignment", p.Alignment, 1.0, 1e-9)
	testutil.AssertApprox(t, "distance", p.DistanceToLane, 5.0, 1e-9)
	// Speed 20px/s over a 2s horizon, scaled and capped at 120.
	testutil.AssertApprox(t, "travel", p.TravelDistance, 120, 1e-9)

	if len(p.Path) != 8 {
		t.Fatalf("path has %d points, want 8", len(p.Path))
	}
	// Path starts at the vehicle's projection onto the lane.
	testutil.AssertPointApprox(t, "path start", p.Path[0], geom.Point{X: 18, Y: 0}, 1e-9)
	testutil.AssertPointApprox(t, "path end", p.Path[7], geom.Point{X: 138, Y: 0}, 1e-9)
}

func TestPredictProbabilityFallsWithDistance(t *testing.T) {
	ix := horizontalLaneIndex(t, 0)
	pr := NewPredictor(ix, DefaultPredictorConfig(testFrameRate))

	near := pr.Predict(movingHistory(geom.Point{Y: 5}, geom.Point{X: 2}, 10))
	far := pr.Predict(movingHistory(geom.Point{Y: 25}, geom.Point{X: 2}, 10))
	if len(near) != 1 || len(far) != 1 {
		t.Fatalf("got %d near and %d far predictions", len(near), len(far))
	}
	if near[0].Probability <= far[0].Probability {
		t.Errorf("near %v <= far %v", near[0].Probability, far[0].Probability)
	}
	// 25px away, aligned and consistent: 1 * (1 - 25/50) * 1, no boost.
	testutil.AssertApprox(t, "far probability", far[0].Probability, 0.5, 1e-9)
}

func TestPredictDiscardsDistantLane(t *testing.T) {
	pr := NewPredictor(horizontalLaneIndex(t, 0), DefaultPredictorConfig(testFrameRate))

	// Within the 80px search radius but beyond the 50px distance cut.
	got := pr.Predict(movingHistory(geom.Point{Y: 60}, geom.Point{X: 2}, 10))
	if got != nil {
		t.Errorf("60px-distant lane produced %d predictions", len(got))
	}
}

func TestPredictDiscardsPerpendicularMovement(t *testing.T) {
	pr := NewPredictor(horizontalLaneIndex(t, 0), DefaultPredictorConfig(testFrameRate))

	// Crossing the lane at a right angle.
	got := pr.Predict(movingHistory(geom.Point{X: 100, Y: 1}, geom.Point{Y: 2}, 10))
	if got != nil {
		t.Errorf("perpendicular movement produced %d predictions", len(got))
	}
}

func TestPredictRanksAndTruncates(t *testing.T) {
	ix := horizontalLaneIndex(t, 5, 15, 25, 35)
	pr := NewPredictor(ix, DefaultPredictorConfig(testFrameRate))

	// Vehicle at y=0: all four lanes qualify, only the top 3 survive.
	got := pr.Predict(movingHistory(geom.Point{Y: 0}, geom.Point{X: 2}, 10))
	if len(got) != 3 {
		t.Fatalf("got %d predictions, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Probability > got[i-1].Probability {
			t.Errorf("ranking violated at %d: %v > %v", i, got[i].Probability, got[i-1].Probability)
		}
	}
	if got[0].LaneID != 0 {
		t.Errorf("best lane = %d, want 0", got[0].LaneID)
	}
}
