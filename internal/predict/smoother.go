package predict

// smoothWindowSize is the number of recent prediction lists buffered
// per vehicle for temporal smoothing.
const smoothWindowSize = 2

// confidenceDecay is applied to averaged probabilities so stale
// agreement fades rather than persisting at full strength.
const confidenceDecay = 0.95

// Smoother stabilises prediction output over time. For each vehicle it
// buffers the last two prediction lists and, on every new list, emits
// entries whose lane agrees across the buffered lists with the
// probability averaged and decayed. The newest entry's path and
// direction are always the ones emitted.
//
// Matching is positional by default: the entry at rank i of the new
// list is compared against rank i of the buffered lists. When lane
// ranking reorders between ticks this under-matches; MatchByLane opts
// into matching by lane identifier across the whole buffered list
// instead.
type Smoother struct {
	// MatchByLane switches from rank-based to identifier-based
	// matching. Off by default to preserve established behaviour.
	MatchByLane bool

	windows map[int64][][]Prediction
}

// NewSmoother creates an empty smoother.
func NewSmoother() *Smoother {
	return &Smoother{windows: make(map[int64][][]Prediction)}
}

// Smooth records the new prediction list for the vehicle and returns
// the temporally smoothed list. The first list ever seen for a vehicle
// passes through unchanged.
func (s *Smoother) Smooth(trackID int64, newList []Prediction) []Prediction {
	window := append(s.windows[trackID], newList)
	if len(window) > smoothWindowSize {
		window = window[1:]
	}
	s.windows[trackID] = window

	if len(window) == 1 {
		return newList
	}
	if s.MatchByLane {
		return s.smoothByLane(window, newList)
	}
	return s.smoothByRank(window, newList)
}

// smoothByRank keeps position i of the new list only when every
// buffered list carries the same lane at position i.
func (s *Smoother) smoothByRank(window [][]Prediction, newList []Prediction) []Prediction {
	shortest := len(newList)
	for _, list := range window {
		if len(list) < shortest {
			shortest = len(list)
		}
	}

	var out []Prediction
	for i := 0; i < shortest; i++ {
		laneID := newList[i].LaneID

		matched := true
		var sum float64
		for _, list := range window {
			if list[i].LaneID != laneID {
				matched = false
				break
			}
			sum += list[i].Probability
		}
		if !matched {
			continue
		}

		smoothed := newList[i]
		smoothed.Probability = sum / float64(len(window)) * confidenceDecay
		out = append(out, smoothed)
	}
	return out
}

// smoothByLane averages each new entry's probability with any entry for
// the same lane anywhere in the buffered lists. Entries never drop: a
// lane absent from older lists simply averages with itself.
func (s *Smoother) smoothByLane(window [][]Prediction, newList []Prediction) []Prediction {
	out := make([]Prediction, 0, len(newList))
	for _, pred := range newList {
		sum := 0.0
		count := 0
		for _, list := range window {
			for _, p := range list {
				if p.LaneID == pred.LaneID {
					sum += p.Probability
					count++
					break
				}
			}
		}
		smoothed := pred
		smoothed.Probability = sum / float64(count) * confidenceDecay
		out = append(out, smoothed)
	}
	return out
}

// Evict discards all buffered state for the vehicle. Called when a
// track is removed or its predictions go stale.
func (s *Smoother) Evict(trackID int64) {
	delete(s.windows, trackID)
}

// Tracked returns the number of vehicles with buffered state.
func (s *Smoother) Tracked() int { return len(s.windows) }
