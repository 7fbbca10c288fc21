package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/laneflow/internal/lanes"
	"github.com/banshee-data/laneflow/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	testutil.AssertNoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	testutil.AssertApprox(t, "frame rate", cfg.GetFrameRate(), 50.0, 1e-9)
	testutil.AssertApprox(t, "simplify tolerance", cfg.GetSimplifyTolerance(), 2.0, 1e-9)
	if cfg.GetMatchByLane() {
		t.Error("match_by_lane defaults to true")
	}

	ccfg := cfg.ConsolidatorConfig()
	if ccfg != lanes.DefaultConsolidatorConfig() {
		t.Errorf("consolidator config = %+v, want defaults", ccfg)
	}

	pcfg := cfg.PredictorConfig()
	testutil.AssertApprox(t, "search radius", pcfg.SearchRadius, 80, 1e-9)
	testutil.AssertApprox(t, "predictor frame rate", pcfg.FrameRate, 50.0, 1e-9)

	mcfg := cfg.MonitorConfig()
	if mcfg.MissThreshold != 20 || mcfg.PredictionInterval != 8 {
		t.Errorf("monitor config = %+v", mcfg)
	}
}

func TestPartialConfigOverridesOnlyNamedFields(t *testing.T) {
	path := writeConfig(t, `{
		"frame_rate": 25.0,
		"merge_threshold": 30.0,
		"miss_threshold": 10
	}`)

	cfg, err := LoadTuningConfig(path)
	testutil.AssertNoError(t, err)

	testutil.AssertApprox(t, "frame rate", cfg.GetFrameRate(), 25.0, 1e-9)

	ccfg := cfg.ConsolidatorConfig()
	testutil.AssertApprox(t, "merge threshold", ccfg.MergeThreshold, 30.0, 1e-9)
	// Unnamed fields keep their defaults.
	testutil.AssertApprox(t, "snap tolerance", ccfg.SnapTolerance, 15.0, 1e-9)
	if ccfg.ClusterStrategy != lanes.StrategySeedLink {
		t.Errorf("cluster strategy = %q", ccfg.ClusterStrategy)
	}

	mcfg := cfg.MonitorConfig()
	if mcfg.MissThreshold != 10 {
		t.Errorf("miss threshold = %d, want 10", mcfg.MissThreshold)
	}
	if mcfg.PredictionInterval != 8 {
		t.Errorf("prediction interval = %d, want default 8", mcfg.PredictionInterval)
	}
	testutil.AssertApprox(t, "monitor frame rate", mcfg.FrameRate, 25.0, 1e-9)
}

func TestLoadConfigRejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	testutil.AssertNoError(t, os.WriteFile(path, []byte("{}"), 0644))
	_, err := LoadTuningConfig(path)
	testutil.AssertError(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	testutil.AssertError(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"negative frame rate", `{"frame_rate": -1}`},
		{"zero merge threshold", `{"merge_threshold": 0}`},
		{"negative snap tolerance", `{"snap_tolerance": -5}`},
		{"unknown strategy", `{"cluster_strategy": "complete-link"}`},
		{"alignment above one", `{"min_alignment": 1.5}`},
		{"probability below zero", `{"min_probability": -0.1}`},
		{"zero prediction interval", `{"prediction_interval": 0}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := LoadTuningConfig(writeConfig(t, c.body))
			testutil.AssertError(t, err)
		})
	}
}

func TestValidStrategiesAccepted(t *testing.T) {
	for _, strategy := range []string{lanes.StrategySeedLink, lanes.StrategySingleLink} {
		path := writeConfig(t, `{"cluster_strategy": "`+strategy+`"}`)
		cfg, err := LoadTuningConfig(path)
		testutil.AssertNoError(t, err)
		if got := cfg.ConsolidatorConfig().ClusterStrategy; got != strategy {
			t.Errorf("strategy = %q, want %q", got, strategy)
		}
	}
}

func TestMatchByLaneOverride(t *testing.T) {
	cfg, err := LoadTuningConfig(writeConfig(t, `{"match_by_lane": true}`))
	testutil.AssertNoError(t, err)
	if !cfg.GetMatchByLane() {
		t.Error("match_by_lane override ignored")
	}
}
