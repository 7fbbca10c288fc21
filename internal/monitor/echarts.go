package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/laneflow/internal/lanes"
	"github.com/banshee-data/laneflow/internal/predict"
)

// SnapshotSource yields the latest per-vehicle predictions. Implemented
// by predict.Monitor.
type SnapshotSource interface {
	Snapshot() []predict.TrackPredictions
}

// LaneChartHandler renders a quick scatter plot (HTML) of the lane map
// and, when a snapshot source is wired, the current vehicles and their
// predicted paths. This is a debugging-only endpoint (no auth) to
// visually check lanes without a frontend.
// Query params:
//   - max_points (optional; default 4000) to reduce payload size
func LaneChartHandler(ls []lanes.Lane, src SnapshotSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxPoints := 4000
		if mp := r.URL.Query().Get("max_points"); mp != "" {
			if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
				maxPoints = v
			}
		}

		total := 0
		for _, lane := range ls {
			total += len(lane.Points)
		}
		stride := 1
		if total > maxPoints && maxPoints > 0 {
			stride = (total + maxPoints - 1) / maxPoints
		}

		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: "Lane Map", Theme: "dark", Width: "900px", Height: "900px"}),
			charts.WithTitleOpts(opts.Title{Title: "Consolidated Lanes", Subtitle: fmt.Sprintf("lanes=%d stride=%d", len(ls), stride)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "X", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Y", NameLocation: "middle", NameGap: 30}),
		)

		for _, lane := range ls {
			data := make([]opts.ScatterData, 0, len(lane.Points)/stride+1)
			for i := 0; i < len(lane.Points); i += stride {
				p := lane.Points[i]
				data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
			}
			scatter.AddSeries(fmt.Sprintf("lane %d", lane.ID), data,
				charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
		}

		if src != nil {
			snapshot := src.Snapshot()
			vehicles := make([]opts.ScatterData, 0, len(snapshot))
			var paths []opts.ScatterData
			for _, tp := range snapshot {
				vehicles = append(vehicles, opts.ScatterData{Value: []interface{}{tp.StartPosition.X, tp.StartPosition.Y}})
				for _, pred := range tp.Predictions {
					for _, p := range pred.Path {
						paths = append(paths, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
					}
				}
			}
			if len(vehicles) > 0 {
				scatter.AddSeries("vehicles", vehicles,
					charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
			}
			if len(paths) > 0 {
				scatter.AddSeries("predicted", paths,
					charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
			}
		}

		var buf bytes.Buffer
		if err := scatter.Render(&buf); err != nil {
			http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}
}
