// Package monitor renders diagnostic output for lane mining runs:
// static PNG lane maps via gonum/plot and a live scatter view served
// over HTTP.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/laneflow/internal/geom"
	"github.com/banshee-data/laneflow/internal/lanes"
)

// LanePlotter renders consolidated lanes, optionally over the raw
// tracks they were mined from, as a PNG lane map.
type LanePlotter struct {
	outputDir string
}

// NewLanePlotter creates a plotter writing into outputDir, creating the
// directory if needed.
func NewLanePlotter(outputDir string) (*LanePlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &LanePlotter{outputDir: outputDir}, nil
}

// PlotLanes writes a lane map PNG named after the run ID and returns
// its path. Raw tracks, when provided, are drawn as faint grey lines
// under the lanes so merge quality can be eyeballed.
func (lp *LanePlotter) PlotLanes(runID string, ls []lanes.Lane, tracks []lanes.RawTrack) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Lane map %s", runID)
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	grey := color.RGBA{R: 190, G: 190, B: 190, A: 255}
	for _, tr := range tracks {
		pts := toXYs(tr.Points)
		if len(pts) < 2 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("track %d line: %w", tr.TrackID, err)
		}
		line.Color = grey
		line.Width = vg.Points(0.5)
		p.Add(line)
	}

	colors := generateColors(len(ls))
	for i, lane := range ls {
		pts := toXYs(lane.Points)
		if len(pts) < 2 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("lane %d line: %w", lane.ID, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("lane %d", lane.ID), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(lp.outputDir, fmt.Sprintf("lanes_%s.png", runID))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save lane plot: %w", err)
	}
	return file, nil
}

func toXYs(points []geom.Point) plotter.XYs {
	pts := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		pts = append(pts, plotter.XY{X: pt.X, Y: pt.Y})
	}
	return pts
}

// generateColors creates a palette of distinct colors for lane lines.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}
