package predict

import (
	"testing"

	"github.com/banshee-data/laneflow/internal/geom"
	"github.com/banshee-data/laneflow/internal/lanes"
	"github.com/banshee-data/laneflow/internal/testutil"
)

func testMonitor(t *testing.T) *Monitor {
	t.Helper()
	ix, err := lanes.BuildIndex([]lanes.Lane{
		{ID: 0, Points: []geom.Point{{X: 0, Y: 0}, {X: 400, Y: 0}}},
	})
	testutil.AssertNoError(t, err)
	pr := NewPredictor(ix, DefaultPredictorConfig(testFrameRate))
	return NewMonitor(pr, DefaultMonitorConfig(testFrameRate))
}

// driveFrames advances the monitor n frames with track 1 moving along
// the lane at 2px per frame, starting from the monitor's current frame.
func driveFrames(m *Monitor, n int) {
	for i := 0; i < n; i++ {
		frame := m.Frame()
		m.ObserveFrame([]Detection{{
			TrackID:  1,
			Position: geom.Point{X: 2 * float64(frame), Y: 5},
		}})
	}
}

func TestMonitorPredictsAfterEnoughHistory(t *testing.T) {
	m := testMonitor(t)

	// First tick at frame 8: only 8 history points, below the 10-point
	// gate, so no predictions yet.
	driveFrames(m, 8)
	if got := m.Snapshot(); len(got) != 0 {
		t.Fatalf("frame 8: got %d prediction sets, want 0", len(got))
	}

	// Second tick at frame 16 has 16 points.
	driveFrames(m, 8)
	got := m.Snapshot()
	if len(got) != 1 {
		t.Fatalf("frame 16: got %d prediction sets, want 1", len(got))
	}
	tp := got[0]
	if tp.TrackID != 1 {
		t.Errorf("track = %d, want 1", tp.TrackID)
	}
	if tp.Frame != 16 {
		t.Errorf("prediction frame = %d, want 16", tp.Frame)
	}
	if len(tp.Predictions) == 0 {
		t.Fatal("no predictions in set")
	}
	if tp.Predictions[0].LaneID != 0 {
		t.Errorf("predicted lane = %d, want 0", tp.Predictions[0].LaneID)
	}
	testutil.AssertPointApprox(t, "start position", tp.StartPosition,
		geom.Point{X: 30, Y: 5}, 1e-9)
}

func TestMonitorPredictionCadence(t *testing.T) {
	m := testMonitor(t)
	driveFrames(m, 16)

	// Non-tick frames keep serving the frame-16 result.
	driveFrames(m, 3)
	got := m.Snapshot()
	if len(got) != 1 || got[0].Frame != 16 {
		t.Fatalf("frame 19 snapshot = %+v, want frame-16 result", got)
	}

	driveFrames(m, 5)
	got = m.Snapshot()
	if len(got) != 1 || got[0].Frame != 24 {
		t.Fatalf("frame 24 snapshot frame = %d, want 24", got[0].Frame)
	}
}

func TestMonitorEvictsMissingTrack(t *testing.T) {
	m := testMonitor(t)
	driveFrames(m, 16)
	if m.TrackedCount() != 1 {
		t.Fatalf("TrackedCount = %d, want 1", m.TrackedCount())
	}

	// The track disappears. Its history survives the first misses, so
	// ticks keep re-predicting from it until the 20-miss threshold
	// removes the track along with its predictions.
	for i := 0; i < 20; i++ {
		m.ObserveFrame(nil)
	}
	if m.TrackedCount() != 1 {
		t.Errorf("TrackedCount = %d after 20 misses, want 1", m.TrackedCount())
	}
	if got := m.Snapshot(); len(got) != 1 {
		t.Errorf("got %d prediction sets before removal, want 1", len(got))
	}

	m.ObserveFrame(nil)
	if m.TrackedCount() != 0 {
		t.Errorf("TrackedCount = %d after 21 misses, want 0", m.TrackedCount())
	}
	if got := m.Snapshot(); len(got) != 0 {
		t.Errorf("removed track still served: %+v", got)
	}
}

func TestMonitorMissCounterResets(t *testing.T) {
	m := testMonitor(t)
	driveFrames(m, 16)

	// 19 misses, one detection, 19 more misses: never crosses the
	// 20-miss threshold.
	for i := 0; i < 19; i++ {
		m.ObserveFrame(nil)
	}
	driveFrames(m, 1)
	for i := 0; i < 19; i++ {
		m.ObserveFrame(nil)
	}
	if m.TrackedCount() != 1 {
		t.Errorf("TrackedCount = %d, want 1", m.TrackedCount())
	}
}

func TestMonitorSnapshotSortedByTrack(t *testing.T) {
	m := testMonitor(t)

	for i := 0; i < 16; i++ {
		frame := m.Frame()
		m.ObserveFrame([]Detection{
			{TrackID: 9, Position: geom.Point{X: 2 * float64(frame), Y: 5}},
			{TrackID: 2, Position: geom.Point{X: 2 * float64(frame), Y: 10}},
		})
	}

	got := m.Snapshot()
	if len(got) != 2 {
		t.Fatalf("got %d prediction sets, want 2", len(got))
	}
	if got[0].TrackID != 2 || got[1].TrackID != 9 {
		t.Errorf("order = [%d, %d], want [2, 9]", got[0].TrackID, got[1].TrackID)
	}
}

func TestMonitorFrameCounter(t *testing.T) {
	m := testMonitor(t)
	if m.Frame() != 0 {
		t.Fatalf("initial frame = %d", m.Frame())
	}
	m.ObserveFrame(nil)
	m.ObserveFrame(nil)
	if m.Frame() != 2 {
		t.Errorf("frame = %d, want 2", m.Frame())
	}
}
