// Command consolidate mines lane centerlines from recorded vehicle
// tracks. Tracks come from a JSONL file or from raw observations in the
// database; the consolidated lane map is written to the database, to
// GeoJSON, and optionally rendered as a PNG lane map.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/laneflow/internal/config"
	"github.com/banshee-data/laneflow/internal/geom"
	"github.com/banshee-data/laneflow/internal/lanedb"
	"github.com/banshee-data/laneflow/internal/lanes"
	"github.com/banshee-data/laneflow/internal/monitor"
)

var (
	tracksFile = flag.String("tracks", "", "Input tracks JSONL file (one track per line); empty reads observations from the database")
	dbFile     = flag.String("db", "lanes.db", "SQLite database file (empty disables persistence)")
	outFile    = flag.String("out", "lanes.geojson", "Output GeoJSON file (empty disables)")
	plotDir    = flag.String("plot-dir", "", "Directory for the lane map PNG (empty disables)")
	configFile = flag.String("config", "", "Tuning config JSON file")
)

func main() {
	flag.Parse()

	cfg := config.EmptyTuningConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var db *lanedb.DB
	if *dbFile != "" {
		var err error
		db, err = lanedb.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}

	tracks, err := loadTracks(db, *tracksFile)
	if err != nil {
		log.Fatalf("Failed to load tracks: %v", err)
	}
	if len(tracks) == 0 {
		log.Fatal("No tracks to consolidate")
	}
	log.Printf("Loaded %d raw tracks", len(tracks))

	consolidatorCfg := cfg.ConsolidatorConfig()
	consolidator := lanes.NewConsolidator(consolidatorCfg)
	laneSet := consolidator.Consolidate(tracks, cfg.GetFrameRate())
	if len(laneSet) == 0 {
		log.Fatal("Consolidation produced no lanes")
	}

	run := lanedb.NewRun(consolidatorCfg, cfg.GetFrameRate(), len(tracks), len(laneSet))
	log.Printf("Run %s: %d tracks -> %d lanes", run.RunID, len(tracks), len(laneSet))

	if db != nil {
		if err := db.InsertRun(run, laneSet); err != nil {
			log.Fatalf("Failed to store run: %v", err)
		}
	}

	if *outFile != "" {
		if err := lanes.SaveGeoJSON(*outFile, laneSet, cfg.GetSimplifyTolerance()); err != nil {
			log.Fatalf("Failed to write GeoJSON: %v", err)
		}
		log.Printf("Wrote %s", *outFile)
	}

	if *plotDir != "" {
		plotter, err := monitor.NewLanePlotter(*plotDir)
		if err != nil {
			log.Fatalf("Failed to create plotter: %v", err)
		}
		file, err := plotter.PlotLanes(run.RunID, laneSet, tracks)
		if err != nil {
			log.Fatalf("Failed to plot lanes: %v", err)
		}
		log.Printf("Wrote %s", file)
	}
}

// trackRecord is one JSONL input line.
type trackRecord struct {
	TrackID    int64        `json:"track_id"`
	Points     []geom.Point `json:"points"`
	FrameCount int          `json:"frame_count"`
}

// loadTracks reads raw tracks from the JSONL file when given, otherwise
// from observations stored in the database.
func loadTracks(db *lanedb.DB, path string) ([]lanes.RawTrack, error) {
	if path == "" {
		if db == nil {
			return nil, fmt.Errorf("no track source: pass -tracks or -db")
		}
		return db.LoadRawTracks()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tracks file: %w", err)
	}
	defer f.Close()

	var out []lanes.RawTrack
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec trackRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		tr := lanes.RawTrack{TrackID: rec.TrackID, Points: rec.Points, FrameCount: rec.FrameCount}
		if tr.FrameCount == 0 {
			tr.FrameCount = len(tr.Points)
		}
		out = append(out, tr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tracks file: %w", err)
	}
	return out, nil
}
