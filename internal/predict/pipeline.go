package predict

import (
	"sort"
	"sync"

	"github.com/banshee-data/laneflow/internal/geom"
	"github.com/banshee-data/laneflow/internal/monitoring"
)

// MonitorConfig holds the frame-loop parameters: history depth, miss
// handling, and prediction cadence.
type MonitorConfig struct {
	FrameRate          float64 // Frames per second of the source footage
	PastHistorySeconds float64 // Position history retained per vehicle
	HistoryMargin      int     // Extra capacity beyond the seconds-derived size
	MissThreshold      int     // Consecutive missed frames before a track is removed
	PredictionInterval int64   // Frames between prediction ticks
	MinHistoryForTick  int     // History points required before a tick invokes the predictor
	StaleAfterFrames   int64   // Frames after which unrefreshed predictions are evicted
}

// DefaultMonitorConfig returns production-default monitor parameters
// for footage at the given frame rate.
func DefaultMonitorConfig(frameRate float64) MonitorConfig {
	return MonitorConfig{
		FrameRate:          frameRate,
		PastHistorySeconds: 4.0,
		HistoryMargin:      5,
		MissThreshold:      20,
		PredictionInterval: 8,
		MinHistoryForTick:  10,
		StaleAfterFrames:   15,
	}
}

// Detection is one vehicle observation in a frame, as delivered by the
// external detector/tracker.
type Detection struct {
	TrackID  int64      `json:"track_id"`
	Position geom.Point `json:"position"`
}

// TrackPredictions is the smoothed prediction set for one vehicle,
// stamped with the frame it was computed on.
type TrackPredictions struct {
	TrackID       int64        `json:"track_id"`
	StartPosition geom.Point   `json:"start_position"`
	Frame         int64        `json:"frame"`
	Predictions   []Prediction `json:"predictions"`
}

// Monitor owns all per-vehicle mutable state of the prediction loop:
// bounded position histories, miss counters, the latest smoothed
// prediction per track, and the smoother. One external frame loop
// advances it via ObserveFrame; reads go through Snapshot. The mutex
// exists because the HTTP ingest path calls ObserveFrame from handler
// goroutines.
type Monitor struct {
	mu sync.Mutex

	cfg       MonitorConfig
	predictor *Predictor
	smoother  *Smoother

	frame     int64
	histories map[int64]*History
	missed    map[int64]int
	latest    map[int64]TrackPredictions
}

// NewMonitor creates a monitor that predicts with the given predictor.
func NewMonitor(predictor *Predictor, cfg MonitorConfig) *Monitor {
	return &Monitor{
		cfg:       cfg,
		predictor: predictor,
		smoother:  NewSmoother(),
		histories: make(map[int64]*History),
		missed:    make(map[int64]int),
		latest:    make(map[int64]TrackPredictions),
	}
}

// SetMatchByLane switches the smoother to identifier-based matching.
// Must be called before the first frame.
func (m *Monitor) SetMatchByLane(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.smoother.MatchByLane = v
}

// Frame returns the current frame counter.
func (m *Monitor) Frame() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// TrackedCount returns the number of vehicles currently tracked.
func (m *Monitor) TrackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.histories)
}

// ObserveFrame advances the monitor by one frame: updates histories for
// detected vehicles, ages out vehicles missing for longer than the miss
// threshold, prunes stale predictions, and recomputes predictions on
// the tick cadence.
func (m *Monitor) ObserveFrame(detections []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frame++

	seen := make(map[int64]bool, len(detections))
	for _, det := range detections {
		seen[det.TrackID] = true
		h, ok := m.histories[det.TrackID]
		if !ok {
			capacity := int(m.cfg.PastHistorySeconds*m.cfg.FrameRate) + m.cfg.HistoryMargin
			h = NewHistory(capacity)
			m.histories[det.TrackID] = h
		}
		h.Push(det.Position)
		m.missed[det.TrackID] = 0
	}

	// Tracks absent from this frame accrue misses and are removed past
	// the threshold, taking their prediction and smoothing state along.
	for trackID := range m.histories {
		if seen[trackID] {
			continue
		}
		m.missed[trackID]++
		if m.missed[trackID] > m.cfg.MissThreshold {
			m.removeTrack(trackID)
		}
	}

	m.pruneStale()

	if m.frame%m.cfg.PredictionInterval == 0 {
		m.tick()
	}
}

// tick recomputes predictions for every vehicle with enough history.
// Vehicles yielding an empty prediction set keep their previous one
// until it goes stale, matching how the renderer held the last result.
func (m *Monitor) tick() {
	for trackID, h := range m.histories {
		if h.Len() < m.cfg.MinHistoryForTick {
			continue
		}
		preds := m.predictor.Predict(h.Points())
		if len(preds) == 0 {
			continue
		}
		smoothed := m.smoother.Smooth(trackID, preds)
		start, _ := h.Last()
		m.latest[trackID] = TrackPredictions{
			TrackID:       trackID,
			StartPosition: start,
			Frame:         m.frame,
			Predictions:   smoothed,
		}
	}
	monitoring.Debugf("frame %d: %d tracked, %d with predictions",
		m.frame, len(m.histories), len(m.latest))
}

// pruneStale evicts prediction and smoothing state not refreshed within
// StaleAfterFrames.
func (m *Monitor) pruneStale() {
	for trackID, tp := range m.latest {
		if m.frame-tp.Frame > m.cfg.StaleAfterFrames {
			delete(m.latest, trackID)
			m.smoother.Evict(trackID)
		}
	}
}

func (m *Monitor) removeTrack(trackID int64) {
	delete(m.histories, trackID)
	delete(m.missed, trackID)
	delete(m.latest, trackID)
	m.smoother.Evict(trackID)
}

// Snapshot returns the latest non-stale predictions, ordered by track
// ID for deterministic output.
func (m *Monitor) Snapshot() []TrackPredictions {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]TrackPredictions, 0, len(m.latest))
	for _, tp := range m.latest {
		if m.frame-tp.Frame > m.cfg.StaleAfterFrames {
			continue
		}
		out = append(out, tp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].TrackID < out[b].TrackID })
	return out
}
