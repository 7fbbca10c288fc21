package lanes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/laneflow/internal/geom"
)

// ErrNoLanes indicates the lane file is absent or contains no usable
// lane features. Callers decide whether to proceed with zero lanes.
var ErrNoLanes = errors.New("lanes: no lane data")

// The GeoJSON exchange schema: a FeatureCollection of LineString
// features carrying a lane_id property. Incidental metadata (length,
// point counts, video properties) is written for downstream tools and
// ignored on load.

type featureCollection struct {
	Type       string                 `json:"type"`
	Features   []laneFeature          `json:"features"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type laneFeature struct {
	Type       string       `json:"type"`
	Geometry   laneGeometry `json:"geometry"`
	Properties laneProps    `json:"properties"`
}

type laneGeometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

type laneProps struct {
	LaneID     int     `json:"lane_id"`
	Length     float64 `json:"length,omitempty"`
	PointCount int     `json:"point_count,omitempty"`
}

// WriteGeoJSON encodes lanes as a GeoJSON FeatureCollection. Each lane
// is simplified with the given tolerance before export (0 disables
// simplification). Lanes with fewer than 2 points are skipped.
func WriteGeoJSON(w io.Writer, ls []Lane, simplifyTolerance float64) error {
	fc := featureCollection{Type: "FeatureCollection"}
	for _, lane := range ls {
		if len(lane.Points) < 2 {
			continue
		}
		pts := geom.SimplifyPolyline(lane.Points, simplifyTolerance)

		coords := make([][]float64, len(pts))
		for i, p := range pts {
			coords[i] = []float64{p.X, p.Y}
		}

		var length float64
		if t, err := geom.NewArcTable(pts); err == nil {
			length = t.Length()
		}

		fc.Features = append(fc.Features, laneFeature{
			Type:     "Feature",
			Geometry: laneGeometry{Type: "LineString", Coordinates: coords},
			Properties: laneProps{
				LaneID:     lane.ID,
				Length:     length,
				PointCount: len(lane.Points),
			},
		})
	}
	fc.Properties = map[string]interface{}{"total_lanes": len(fc.Features)}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

// SaveGeoJSON writes lanes to a file, creating or truncating it.
func SaveGeoJSON(path string, ls []Lane, simplifyTolerance float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create lane file: %w", err)
	}
	defer f.Close()
	if err := WriteGeoJSON(f, ls, simplifyTolerance); err != nil {
		return fmt.Errorf("encode lane file: %w", err)
	}
	return nil
}

// ReadGeoJSON decodes lanes from a GeoJSON FeatureCollection. Features
// with fewer than 2 coordinates are skipped. Returns ErrNoLanes when no
// usable features remain.
func ReadGeoJSON(r io.Reader) ([]Lane, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse lane file: %w", err)
	}

	var out []Lane
	for _, f := range fc.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		pts := make([]geom.Point, len(f.Geometry.Coordinates))
		for i, c := range f.Geometry.Coordinates {
			if len(c) < 2 {
				return nil, fmt.Errorf("lane %d: coordinate %d has %d components", f.Properties.LaneID, i, len(c))
			}
			pts[i] = geom.Point{X: c[0], Y: c[1]}
		}
		out = append(out, Lane{ID: f.Properties.LaneID, Points: pts})
	}
	if len(out) == 0 {
		return nil, ErrNoLanes
	}
	return out, nil
}

// LoadGeoJSON reads lanes from a file. A missing file maps to
// ErrNoLanes so callers can distinguish "no data yet" from a corrupt
// file.
func LoadGeoJSON(path string) ([]Lane, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoLanes
		}
		return nil, fmt.Errorf("open lane file: %w", err)
	}
	defer f.Close()
	return ReadGeoJSON(f)
}
