package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/laneflow/internal/geom"
	"github.com/banshee-data/laneflow/internal/lanes"
	"github.com/banshee-data/laneflow/internal/testutil"
)

func TestPlotLanesWritesPNG(t *testing.T) {
	dir := t.TempDir()
	lp, err := NewLanePlotter(dir)
	testutil.AssertNoError(t, err)

	ls := []lanes.Lane{
		{ID: 0, Points: testutil.LinePoints(geom.Point{Y: 100}, geom.Point{X: 4}, 50)},
		{ID: 1, Points: testutil.LinePoints(geom.Point{Y: 300}, geom.Point{X: 4}, 50)},
	}
	tracks := []lanes.RawTrack{
		{TrackID: 1, Points: testutil.LinePoints(geom.Point{Y: 102}, geom.Point{X: 4}, 50), FrameCount: 50},
	}

	file, err := lp.PlotLanes("test-run", ls, tracks)
	testutil.AssertNoError(t, err)
	if filepath.Dir(file) != dir {
		t.Errorf("plot written outside output dir: %s", file)
	}

	info, err := os.Stat(file)
	testutil.AssertNoError(t, err)
	if info.Size() == 0 {
		t.Error("plot file is empty")
	}
}

func TestPlotLanesSkipsDegenerate(t *testing.T) {
	lp, err := NewLanePlotter(t.TempDir())
	testutil.AssertNoError(t, err)

	ls := []lanes.Lane{
		{ID: 0, Points: []geom.Point{{X: 1, Y: 1}}},
		{ID: 1, Points: testutil.LinePoints(geom.Point{}, geom.Point{X: 4}, 10)},
	}
	if _, err := lp.PlotLanes("degenerate", ls, nil); err != nil {
		t.Fatalf("degenerate lane broke the plot: %v", err)
	}
}
