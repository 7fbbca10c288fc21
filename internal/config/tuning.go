// Package config loads and validates LaneFlow tuning parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/laneflow/internal/lanes"
	"github.com/banshee-data/laneflow/internal/predict"
)

// TuningConfig represents the root configuration for tuning parameters.
// Fields are pointers so a partial JSON file only overrides what it
// names; the Get* accessors supply defaults for everything else.
type TuningConfig struct {
	// Footage params
	FrameRate *float64 `json:"frame_rate,omitempty"`

	// Consolidation params
	MinTrackDurationSeconds *float64 `json:"min_track_duration_seconds,omitempty"`
	MinTrackPoints          *int     `json:"min_track_points,omitempty"`
	SmoothingWindow         *int     `json:"smoothing_window,omitempty"`
	MergeThreshold          *float64 `json:"merge_threshold,omitempty"`
	SnapTolerance           *float64 `json:"snap_tolerance,omitempty"`
	ClusterStrategy         *string  `json:"cluster_strategy,omitempty"`
	SimplifyTolerance       *float64 `json:"simplify_tolerance,omitempty"`

	// Prediction params
	FuturePredictionSeconds *float64 `json:"future_prediction_seconds,omitempty"`
	SearchRadius            *float64 `json:"search_radius,omitempty"`
	MaxCandidateLanes       *int     `json:"max_candidate_lanes,omitempty"`
	MaxLaneDistance         *float64 `json:"max_lane_distance,omitempty"`
	MinAlignment            *float64 `json:"min_alignment,omitempty"`
	MinProbability          *float64 `json:"min_probability,omitempty"`
	MaxTravelDistance       *float64 `json:"max_travel_distance,omitempty"`

	// Monitor params
	PastHistorySeconds *float64 `json:"past_history_seconds,omitempty"`
	MissThreshold      *int     `json:"miss_threshold,omitempty"`
	PredictionInterval *int64   `json:"prediction_interval,omitempty"`
	StaleAfterFrames   *int64   `json:"stale_after_frames,omitempty"`
	MatchByLane        *bool    `json:"match_by_lane,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields
// omitted from the JSON retain their defaults, so partial configs are
// safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.FrameRate != nil && *c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %f", *c.FrameRate)
	}
	if c.MinTrackDurationSeconds != nil && *c.MinTrackDurationSeconds < 0 {
		return fmt.Errorf("min_track_duration_seconds must be non-negative, got %f", *c.MinTrackDurationSeconds)
	}
	if c.MergeThreshold != nil && *c.MergeThreshold <= 0 {
		return fmt.Errorf("merge_threshold must be positive, got %f", *c.MergeThreshold)
	}
	if c.SnapTolerance != nil && *c.SnapTolerance < 0 {
		return fmt.Errorf("snap_tolerance must be non-negative, got %f", *c.SnapTolerance)
	}
	if c.ClusterStrategy != nil {
		switch *c.ClusterStrategy {
		case lanes.StrategySeedLink, lanes.StrategySingleLink:
		default:
			return fmt.Errorf("cluster_strategy must be %q or %q, got %q",
				lanes.StrategySeedLink, lanes.StrategySingleLink, *c.ClusterStrategy)
		}
	}
	if c.MinAlignment != nil && (*c.MinAlignment < 0 || *c.MinAlignment > 1) {
		return fmt.Errorf("min_alignment must be between 0 and 1, got %f", *c.MinAlignment)
	}
	if c.MinProbability != nil && (*c.MinProbability < 0 || *c.MinProbability > 1) {
		return fmt.Errorf("min_probability must be between 0 and 1, got %f", *c.MinProbability)
	}
	if c.PredictionInterval != nil && *c.PredictionInterval < 1 {
		return fmt.Errorf("prediction_interval must be >= 1, got %d", *c.PredictionInterval)
	}
	return nil
}

// GetFrameRate returns the frame_rate value or the default.
func (c *TuningConfig) GetFrameRate() float64 {
	if c.FrameRate == nil {
		return 50.0
	}
	return *c.FrameRate
}

// GetSimplifyTolerance returns the simplify_tolerance value or the default.
func (c *TuningConfig) GetSimplifyTolerance() float64 {
	if c.SimplifyTolerance == nil {
		return 2.0
	}
	return *c.SimplifyTolerance
}

// GetMatchByLane returns the match_by_lane value or the default.
func (c *TuningConfig) GetMatchByLane() bool {
	if c.MatchByLane == nil {
		return false
	}
	return *c.MatchByLane
}

// ConsolidatorConfig derives consolidation parameters from the tuning
// config, falling back to package defaults for unset fields.
func (c *TuningConfig) ConsolidatorConfig() lanes.ConsolidatorConfig {
	cfg := lanes.DefaultConsolidatorConfig()
	if c.MinTrackDurationSeconds != nil {
		cfg.MinTrackDurationSeconds = *c.MinTrackDurationSeconds
	}
	if c.MinTrackPoints != nil {
		cfg.MinTrackPoints = *c.MinTrackPoints
	}
	if c.SmoothingWindow != nil {
		cfg.SmoothingWindow = *c.SmoothingWindow
	}
	if c.MergeThreshold != nil {
		cfg.MergeThreshold = *c.MergeThreshold
	}
	if c.SnapTolerance != nil {
		cfg.SnapTolerance = *c.SnapTolerance
	}
	if c.ClusterStrategy != nil {
		cfg.ClusterStrategy = *c.ClusterStrategy
	}
	return cfg
}

// PredictorConfig derives prediction parameters from the tuning config.
func (c *TuningConfig) PredictorConfig() predict.PredictorConfig {
	cfg := predict.DefaultPredictorConfig(c.GetFrameRate())
	if c.FuturePredictionSeconds != nil {
		cfg.HorizonSeconds = *c.FuturePredictionSeconds
	}
	if c.SearchRadius != nil {
		cfg.SearchRadius = *c.SearchRadius
	}
	if c.MaxCandidateLanes != nil {
		cfg.MaxCandidates = *c.MaxCandidateLanes
	}
	if c.MaxLaneDistance != nil {
		cfg.MaxLaneDistance = *c.MaxLaneDistance
	}
	if c.MinAlignment != nil {
		cfg.MinAlignment = *c.MinAlignment
	}
	if c.MinProbability != nil {
		cfg.MinProbability = *c.MinProbability
	}
	if c.MaxTravelDistance != nil {
		cfg.MaxTravelDist = *c.MaxTravelDistance
	}
	return cfg
}

// MonitorConfig derives frame-loop parameters from the tuning config.
func (c *TuningConfig) MonitorConfig() predict.MonitorConfig {
	cfg := predict.DefaultMonitorConfig(c.GetFrameRate())
	if c.PastHistorySeconds != nil {
		cfg.PastHistorySeconds = *c.PastHistorySeconds
	}
	if c.MissThreshold != nil {
		cfg.MissThreshold = *c.MissThreshold
	}
	if c.PredictionInterval != nil {
		cfg.PredictionInterval = *c.PredictionInterval
	}
	if c.StaleAfterFrames != nil {
		cfg.StaleAfterFrames = *c.StaleAfterFrames
	}
	return cfg
}
