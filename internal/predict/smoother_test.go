package predict

import (
	"testing"

	"github.com/banshee-data/laneflow/internal/testutil"
)

func TestSmootherFirstListPassesThrough(t *testing.T) {
	s := NewSmoother()
	in := []Prediction{{LaneID: 0, Probability: 0.8}, {LaneID: 1, Probability: 0.5}}
	out := s.Smooth(7, in)
	if len(out) != 2 {
		t.Fatalf("got %d predictions, want 2", len(out))
	}
	testutil.AssertApprox(t, "probability", out[0].Probability, 0.8, 1e-9)
}

func TestSmootherAveragesAndDecays(t *testing.T) {
	s := NewSmoother()
	s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.8}})
	out := s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.6}})
	if len(out) != 1 {
		t.Fatalf("got %d predictions, want 1", len(out))
	}
	// (0.8 + 0.6) / 2 * 0.95
	testutil.AssertApprox(t, "probability", out[0].Probability, 0.665, 1e-9)
}

func TestSmootherDropsRankMismatch(t *testing.T) {
	s := NewSmoother()
	s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.8}, {LaneID: 1, Probability: 0.5}})

	// Ranks swapped: neither position matches across the window.
	out := s.Smooth(7, []Prediction{{LaneID: 1, Probability: 0.8}, {LaneID: 0, Probability: 0.5}})
	if len(out) != 0 {
		t.Errorf("got %d predictions after rank swap, want 0", len(out))
	}
}

func TestSmootherRankMatchUsesShortestList(t *testing.T) {
	s := NewSmoother()
	s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.8}})
	out := s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.6}, {LaneID: 1, Probability: 0.5}})
	// Only rank 0 exists in both lists.
	if len(out) != 1 || out[0].LaneID != 0 {
		t.Fatalf("got %+v, want only lane 0", out)
	}
}

func TestSmootherMatchByLaneSurvivesReordering(t *testing.T) {
	s := NewSmoother()
	s.MatchByLane = true
	s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.8}, {LaneID: 1, Probability: 0.5}})

	out := s.Smooth(7, []Prediction{{LaneID: 1, Probability: 0.8}, {LaneID: 0, Probability: 0.5}})
	if len(out) != 2 {
		t.Fatalf("got %d predictions, want 2", len(out))
	}
	// Both lanes average their two appearances: (0.8 + 0.5) / 2 * 0.95.
	testutil.AssertApprox(t, "lane 1 probability", out[0].Probability, 0.6175, 1e-9)
	testutil.AssertApprox(t, "lane 0 probability", out[1].Probability, 0.6175, 1e-9)
}

func TestSmootherWindowSlides(t *testing.T) {
	s := NewSmoother()
	s.Smooth(7, []Prediction{{LaneID: 0, Probability: 1.0}})
	s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.5}})
	out := s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.5}})
	// The 1.0 list has slid out; the window is [0.5, 0.5].
	testutil.AssertApprox(t, "probability", out[0].Probability, 0.475, 1e-9)
}

func TestSmootherEvict(t *testing.T) {
	s := NewSmoother()
	s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.8}})
	if s.Tracked() != 1 {
		t.Fatalf("Tracked = %d, want 1", s.Tracked())
	}
	s.Evict(7)
	if s.Tracked() != 0 {
		t.Fatalf("Tracked = %d after evict", s.Tracked())
	}

	// After eviction the next list passes through like a first list.
	out := s.Smooth(7, []Prediction{{LaneID: 0, Probability: 0.8}})
	testutil.AssertApprox(t, "probability", out[0].Probability, 0.8, 1e-9)
}

func TestSmootherTracksAreIndependent(t *testing.T) {
	s := NewSmoother()
	s.Smooth(1, []Prediction{{LaneID: 0, Probability: 0.8}})
	out := s.Smooth(2, []Prediction{{LaneID: 0, Probability: 0.4}})
	// Track 2's first list is untouched by track 1's window.
	testutil.AssertApprox(t, "probability", out[0].Probability, 0.4, 1e-9)
}
